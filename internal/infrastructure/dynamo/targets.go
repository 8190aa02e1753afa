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

// TargetRepo provides typed DynamoDB operations for the notification targets table.
type TargetRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTargetRepo(client *dynamodb.Client, tableName string) *TargetRepo {
	return &TargetRepo{client: client, tableName: tableName}
}

func (r *TargetRepo) Put(ctx context.Context, t *domain.NotificationTarget) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal target: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TargetRepo) Get(ctx context.Context, targetID string) (*domain.NotificationTarget, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("target_id", targetID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("target not found: %w", domain.ErrNotFound)
	}
	var t domain.NotificationTarget
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TargetRepo) ListByTenant(ctx context.Context, tenantID string) ([]domain.NotificationTarget, error) {
	var targets []domain.NotificationTarget
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("tenant_id-index"),
			KeyConditionExpression: aws.String("tenant_id = :tid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":tid": &types.AttributeValueMemberS{Value: tenantID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.NotificationTarget
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		targets = append(targets, page...)
		if out.LastEvaluatedKey == nil {
			return targets, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (r *TargetRepo) Delete(ctx context.Context, targetID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("target_id", targetID),
	})
	return err
}
