package models

// User represents a registered extension user.
// Email is always stored lower-cased and trimmed; RegisteredEmail mirrors
// the address registered explicitly for webhook lookups.
type User struct {
	UserID          string  `json:"userId" dynamodbav:"userId"`
	Email           string  `json:"email" dynamodbav:"email"`
	RegisteredEmail string  `json:"registeredEmail,omitempty" dynamodbav:"registeredEmail,omitempty"`
	DisplayName     string  `json:"displayName" dynamodbav:"displayName"`
	ProfilePicture  string  `json:"profilePicture,omitempty" dynamodbav:"profilePicture"`
	CreatedAt       int64   `json:"createdAt" dynamodbav:"createdAt"`
	LastLoginAt     int64   `json:"lastLoginAt" dynamodbav:"lastLoginAt"`
	UpdatedAt       int64   `json:"updatedAt,omitempty" dynamodbav:"updatedAt,omitempty"`
	OrgID           *string `json:"orgId,omitempty" dynamodbav:"orgId,omitempty"`
	Settings        string  `json:"settings" dynamodbav:"settings"`
}
