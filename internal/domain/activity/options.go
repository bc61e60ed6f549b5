package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	Mint         string
	Beneficiary  *string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}
