package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/notify-dispatch/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ListByTenant(ctx context.Context, tenantID string) ([]domain.User, error) {
	return r.queryAll(ctx, "tenant_id-index", "tenant_id", tenantID, "")
}

func (r *UserRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.User, error) {
	return r.queryAll(ctx, "customer_id-index", "customer_id", customerID, "")
}

func (r *UserRepo) ListByTenantAndAuthority(ctx context.Context, tenantID, authority string) ([]domain.User, error) {
	return r.queryAll(ctx, "tenant_id-index", "tenant_id", tenantID, authority)
}

func (r *UserRepo) ListByAuthority(ctx context.Context, authority string) ([]domain.User, error) {
	return r.queryAll(ctx, "authority-index", "authority", authority, "")
}

// queryAll drains a GSI query, following LastEvaluatedKey until exhausted.
// When authorityFilter is non-empty it is applied as a filter expression.
func (r *UserRepo) queryAll(ctx context.Context, index, attr, value, authorityFilter string) ([]domain.User, error) {
	var users []domain.User
	var startKey map[string]types.AttributeValue
	for {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(index),
			KeyConditionExpression: aws.String("#a = :v"),
			ExpressionAttributeNames: map[string]string{"#a": attr},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberS{Value: value},
			},
			ExclusiveStartKey: startKey,
		}
		if authorityFilter != "" {
			input.FilterExpression = aws.String("authority = :auth")
			input.ExpressionAttributeValues[":auth"] = &types.AttributeValueMemberS{Value: authorityFilter}
		}
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.User
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		users = append(users, page...)
		if out.LastEvaluatedKey == nil {
			return users, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
