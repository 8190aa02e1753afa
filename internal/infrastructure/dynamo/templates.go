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

// TemplateRepo provides typed DynamoDB operations for the notification templates table.
type TemplateRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTemplateRepo(client *dynamodb.Client, tableName string) *TemplateRepo {
	return &TemplateRepo{client: client, tableName: tableName}
}

func (r *TemplateRepo) Put(ctx context.Context, t *domain.NotificationTemplate) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TemplateRepo) Get(ctx context.Context, templateID string) (*domain.NotificationTemplate, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("template_id", templateID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("template not found: %w", domain.ErrNotFound)
	}
	var t domain.NotificationTemplate
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepo) ListByTenant(ctx context.Context, tenantID string) ([]domain.NotificationTemplate, error) {
	var templates []domain.NotificationTemplate
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
		var page []domain.NotificationTemplate
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		templates = append(templates, page...)
		if out.LastEvaluatedKey == nil {
			return templates, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (r *TemplateRepo) Delete(ctx context.Context, templateID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("template_id", templateID),
	})
	return err
}
