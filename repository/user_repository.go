package repository

import (
	"context"
	"strings"

	"formbot-backend/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UserRepository handles DynamoDB operations for the users table
type UserRepository struct {
	client *dynamodb.Client
	table  string
}

// NewUserRepository creates a new user repository
func NewUserRepository(client *dynamodb.Client, table string) *UserRepository {
	return &UserRepository{client: client, table: table}
}

// Get retrieves a user by id. Returns (nil, nil) when the user does not exist.
func (r *UserRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}

	user := &models.User{}
	if err := attributevalue.UnmarshalMap(out.Item, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Put upserts a user record
func (r *UserRepository) Put(ctx context.Context, user *models.User) error {
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	return err
}

// UpdateEmail sets the email and registeredEmail attributes on an existing
// user record without touching the rest of it
func (r *UserRepository) UpdateEmail(ctx context.Context, userID, email string, timestamp int64) error {
	update := expression.
		Set(expression.Name("email"), expression.Value(email)).
		Set(expression.Name("registeredEmail"), expression.Value(email)).
		Set(expression.Name("updatedAt"), expression.Value(timestamp))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return err
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

// FindByEmail resolves a user by email. The lookup is an ordered pair of
// strategies: a filtered scan on the exact lower-cased address (cheap-ish,
// server-side filter), then a full table scan compared case-insensitively
// in process (expensive, last resort for records written before email
// normalization). Returns (nil, nil) when neither strategy matches.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}

	// Strategy 1: exact match on the normalized address, against both the
	// sign-in email and the separately registered webhook-routing email
	filter := expression.Name("email").Equal(expression.Value(email)).
		Or(expression.Name("registeredEmail").Equal(expression.Value(email)))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, err
	}

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.table),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if len(page.Items) > 0 {
			user := &models.User{}
			if err := attributevalue.UnmarshalMap(page.Items[0], user); err != nil {
				return nil, err
			}
			return user, nil
		}
	}

	// Strategy 2: full scan, case-insensitive compare
	full := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.table),
	})
	for full.HasMorePages() {
		page, err := full.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var users []models.User
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &users); err != nil {
			return nil, err
		}
		for i := range users {
			if strings.ToLower(strings.TrimSpace(users[i].Email)) == email ||
				strings.ToLower(strings.TrimSpace(users[i].RegisteredEmail)) == email {
				return &users[i], nil
			}
		}
	}

	return nil, nil
}
