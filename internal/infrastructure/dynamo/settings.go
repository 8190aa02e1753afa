package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/notify-dispatch/internal/domain"
)

// SettingsRepo provides typed DynamoDB operations for per-user notification
// preferences and tenant-wide channel settings. The two live in separate
// tables but share one repo since both are small single-key documents.
type SettingsRepo struct {
	client          *dynamodb.Client
	userTableName   string
	tenantTableName string
}

func NewSettingsRepo(client *dynamodb.Client, userTableName, tenantTableName string) *SettingsRepo {
	return &SettingsRepo{
		client:          client,
		userTableName:   userTableName,
		tenantTableName: tenantTableName,
	}
}

func (r *SettingsRepo) PutUserSettings(ctx context.Context, s *domain.UserNotificationSettings) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal user settings: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.userTableName),
		Item:      item,
	})
	return err
}

func (r *SettingsRepo) GetUserSettings(ctx context.Context, userID string) (*domain.UserNotificationSettings, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.userTableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user settings not found: %w", domain.ErrNotFound)
	}
	var s domain.UserNotificationSettings
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepo) PutTenantSettings(ctx context.Context, s *domain.NotificationSettings) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal tenant settings: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tenantTableName),
		Item:      item,
	})
	return err
}

func (r *SettingsRepo) GetTenantSettings(ctx context.Context, tenantID string) (*domain.NotificationSettings, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tenantTableName),
		Key:       strKey("tenant_id", tenantID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("tenant settings not found: %w", domain.ErrNotFound)
	}
	var s domain.NotificationSettings
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
