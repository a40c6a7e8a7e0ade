package models

// Document is metadata for an uploaded file; the bytes live in the object
// store under S3Key. Keyed by (userId, documentId).
type Document struct {
	UserID       string `json:"userId" dynamodbav:"userId"`
	DocumentID   string `json:"documentId" dynamodbav:"documentId"`
	S3Key        string `json:"s3Key" dynamodbav:"s3Key"`
	FileName     string `json:"fileName" dynamodbav:"fileName"`
	FileType     string `json:"fileType" dynamodbav:"fileType"`
	FileSize     int64  `json:"fileSize" dynamodbav:"fileSize"`
	DocumentType string `json:"documentType" dynamodbav:"documentType"`
	FormURL      string `json:"formUrl,omitempty" dynamodbav:"formUrl,omitempty"`
	FieldName    string `json:"fieldName,omitempty" dynamodbav:"fieldName,omitempty"`
	FieldLabel   string `json:"fieldLabel,omitempty" dynamodbav:"fieldLabel,omitempty"`
	ProfileID    string `json:"profileId,omitempty" dynamodbav:"profileId,omitempty"`
	SubmittedAt  int64  `json:"submittedAt" dynamodbav:"submittedAt"`
}
