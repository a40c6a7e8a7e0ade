package repository

import (
	"context"

	"formbot-backend/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DocumentRepository handles DynamoDB operations for the documents table.
// The table is keyed (userId, documentId).
type DocumentRepository struct {
	client *dynamodb.Client
	table  string
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(client *dynamodb.Client, table string) *DocumentRepository {
	return &DocumentRepository{client: client, table: table}
}

// Put upserts a document metadata record
func (r *DocumentRepository) Put(ctx context.Context, doc *models.Document) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	return err
}

// Get retrieves a document by (userId, documentId). Returns (nil, nil) when absent.
func (r *DocumentRepository) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       documentKey(userID, documentID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}

	doc := &models.Document{}
	if err := attributevalue.UnmarshalMap(out.Item, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListByUser retrieves all document metadata for a user
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]*models.Document, error) {
	keyCond := expression.Key("userId").Equal(expression.Value(userID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, err
	}

	var docs []*models.Document
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			doc := &models.Document{}
			if err := attributevalue.UnmarshalMap(item, doc); err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Delete removes a document metadata record
func (r *DocumentRepository) Delete(ctx context.Context, userID, documentID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       documentKey(userID, documentID),
	})
	return err
}

func documentKey(userID, documentID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId":     &types.AttributeValueMemberS{Value: userID},
		"documentId": &types.AttributeValueMemberS{Value: documentID},
	}
}
