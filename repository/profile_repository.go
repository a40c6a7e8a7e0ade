package repository

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"formbot-backend/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const userIDIndex = "userId-index"

// ProfileRepository handles DynamoDB operations for the profiles table
type ProfileRepository struct {
	client *dynamodb.Client
	table  string
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(client *dynamodb.Client, table string) *ProfileRepository {
	return &ProfileRepository{client: client, table: table}
}

// Get retrieves a profile by id. Returns (nil, nil) when absent.
func (r *ProfileRepository) Get(ctx context.Context, profileID string) (*models.Profile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"profileId": &types.AttributeValueMemberS{Value: profileID},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}

	profile := &models.Profile{}
	if err := attributevalue.UnmarshalMap(out.Item, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Put upserts a profile record
func (r *ProfileRepository) Put(ctx context.Context, profile *models.Profile) error {
	item, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	return err
}

// ListByUser returns the user's profiles updated after since (0 means all),
// ordered by last-update time. The lookup is an ordered list of strategies:
//  1. userId-index query with updatedAt in the key condition (index query,
//     cheapest, requires updatedAt as the index sort key)
//  2. userId-index query on userId only, filtering updatedAt in process
//     (index query plus client-side filter)
//  3. full table scan filtered by userId (slowest; only when the index is
//     missing entirely)
func (r *ProfileRepository) ListByUser(ctx context.Context, userID string, since int64) ([]*models.Profile, error) {
	var profiles []*models.Profile
	var err error

	if since > 0 {
		profiles, err = r.queryIndex(ctx, userID, since)
		if isKeySchemaMismatch(err) {
			// Index exists but updatedAt is not its sort key; pull
			// everything for the user and filter here.
			log.Printf("Warning: %s does not support updatedAt key condition, filtering client-side", userIDIndex)
			profiles, err = r.queryIndex(ctx, userID, 0)
			if err == nil {
				profiles = filterSince(profiles, since)
			}
		}
	} else {
		profiles, err = r.queryIndex(ctx, userID, 0)
	}

	if isMissingIndex(err) {
		log.Printf("Warning: %s not found, falling back to table scan", userIDIndex)
		profiles, err = r.scanByUser(ctx, userID)
		if err == nil && since > 0 {
			profiles = filterSince(profiles, since)
		}
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].UpdatedAt < profiles[j].UpdatedAt
	})
	return profiles, nil
}

// FindBySourceID locates a user's profile by its source-grouping id using a
// filtered scan. Returns (nil, nil) when no profile matches.
func (r *ProfileRepository) FindBySourceID(ctx context.Context, userID, sourceID string) (*models.Profile, error) {
	filter := expression.Name("userId").Equal(expression.Value(userID)).
		And(expression.Name("sourceId").Equal(expression.Value(sourceID)))
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
			profile := &models.Profile{}
			if err := attributevalue.UnmarshalMap(page.Items[0], profile); err != nil {
				return nil, err
			}
			return profile, nil
		}
	}
	return nil, nil
}

func (r *ProfileRepository) queryIndex(ctx context.Context, userID string, since int64) ([]*models.Profile, error) {
	keyCond := expression.Key("userId").Equal(expression.Value(userID))
	if since > 0 {
		keyCond = keyCond.And(expression.Key("updatedAt").GreaterThan(expression.Value(since)))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, err
	}

	var profiles []*models.Profile
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(userIDIndex),
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
			profile := &models.Profile{}
			if err := attributevalue.UnmarshalMap(item, profile); err != nil {
				return nil, err
			}
			profiles = append(profiles, profile)
		}
	}
	return profiles, nil
}

func (r *ProfileRepository) scanByUser(ctx context.Context, userID string) ([]*models.Profile, error) {
	filter := expression.Name("userId").Equal(expression.Value(userID))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, err
	}

	var profiles []*models.Profile
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
		for _, item := range page.Items {
			profile := &models.Profile{}
			if err := attributevalue.UnmarshalMap(item, profile); err != nil {
				return nil, err
			}
			profiles = append(profiles, profile)
		}
	}
	return profiles, nil
}

func filterSince(profiles []*models.Profile, since int64) []*models.Profile {
	filtered := profiles[:0]
	for _, p := range profiles {
		if p.UpdatedAt > since {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// isKeySchemaMismatch reports a ValidationException caused by querying the
// index with a key attribute it does not carry
func isKeySchemaMismatch(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "ValidationException" {
		return false
	}
	msg := strings.ToLower(apiErr.ErrorMessage())
	return strings.Contains(msg, "key attributes") || strings.Contains(msg, "exceeds")
}

// isMissingIndex reports a ValidationException caused by the index not
// existing on the table
func isMissingIndex(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "ValidationException" {
		return false
	}
	msg := strings.ToLower(apiErr.ErrorMessage())
	return strings.Contains(msg, "index") || strings.Contains(msg, "does not exist")
}
