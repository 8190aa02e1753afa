package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/notify-dispatch/internal/domain"
)

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListUnread returns the recipient's newest unread notifications, newest first.
// limit <= 0 means no limit.
func (r *NotificationRepo) ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	var notifications []domain.Notification
	var startKey map[string]types.AttributeValue
	for {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("recipient_id-created_at-index"),
			KeyConditionExpression: aws.String("recipient_id = :rid"),
			FilterExpression:       aws.String("#rd = :unread"),
			ExpressionAttributeNames: map[string]string{"#rd": fieldRead},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rid":    &types.AttributeValueMemberS{Value: recipientID},
				":unread": &types.AttributeValueMemberBOOL{Value: false},
			},
			ScanIndexForward:  aws.Bool(false),
			ExclusiveStartKey: startKey,
		}
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		notifications = append(notifications, page...)
		if limit > 0 && len(notifications) >= limit {
			return notifications[:limit], nil
		}
		if out.LastEvaluatedKey == nil {
			return notifications, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	count := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("recipient_id-created_at-index"),
			KeyConditionExpression: aws.String("recipient_id = :rid"),
			FilterExpression:       aws.String("#rd = :unread"),
			ExpressionAttributeNames: map[string]string{"#rd": fieldRead},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rid":    &types.AttributeValueMemberS{Value: recipientID},
				":unread": &types.AttributeValueMemberBOOL{Value: false},
			},
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, err
		}
		count += int(out.Count)
		if out.LastEvaluatedKey == nil {
			return count, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// MarkAsRead flips the read flag. The recipient check is a condition so one
// recipient can never acknowledge another recipient's notification.
func (r *NotificationRepo) MarkAsRead(ctx context.Context, recipientID, notificationID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldRead: true})
	if err != nil {
		return err
	}
	ue.Values[":rid"] = &types.AttributeValueMemberS{Value: recipientID}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("recipient_id = :rid"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
		}
		return err
	}
	return nil
}

func (r *NotificationRepo) MarkAllAsRead(ctx context.Context, recipientID string) error {
	unread, err := r.ListUnread(ctx, recipientID, 0)
	if err != nil {
		return err
	}
	for i := range unread {
		if err := r.MarkAsRead(ctx, recipientID, unread[i].NotificationID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByRequest removes every notification created by one request and
// returns the distinct recipient ids that were affected.
func (r *NotificationRepo) DeleteByRequest(ctx context.Context, requestID string) ([]string, error) {
	var recipients []string
	seen := make(map[string]bool)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("request_id-index"),
			KeyConditionExpression: aws.String("request_id = :req"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":req": &types.AttributeValueMemberS{Value: requestID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		for i := range page {
			if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key:       strKey("notification_id", page[i].NotificationID),
			}); err != nil {
				return nil, err
			}
			if !seen[page[i].RecipientID] {
				seen[page[i].RecipientID] = true
				recipients = append(recipients, page[i].RecipientID)
			}
		}
		if out.LastEvaluatedKey == nil {
			return recipients, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// ListByRecipient returns a page of the recipient's notifications, read or
// not, newest first.
func (r *NotificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit int32, cursor string) ([]domain.Notification, string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("recipient_id-created_at-index"),
		KeyConditionExpression: aws.String("recipient_id = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: recipientID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	}
	if cursor != "" {
		startKey, err := decodeNotificationCursor(cursor, recipientID)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = startKey
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, "", err
	}
	var notifications []domain.Notification
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &notifications); err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if out.LastEvaluatedKey != nil {
		nextCursor = encodeNotificationCursor(out.LastEvaluatedKey)
	}
	return notifications, nextCursor, nil
}

func encodeNotificationCursor(key map[string]types.AttributeValue) string {
	var notificationID, createdAt string
	if v, ok := key["notification_id"].(*types.AttributeValueMemberS); ok {
		notificationID = v.Value
	}
	if v, ok := key["created_at"].(*types.AttributeValueMemberN); ok {
		createdAt = v.Value
	}
	return encodeCursor(notificationID + "|" + createdAt)
}

func decodeNotificationCursor(cursor, recipientID string) (map[string]types.AttributeValue, error) {
	raw, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(raw, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("malformed cursor")
	}
	return map[string]types.AttributeValue{
		"notification_id": &types.AttributeValueMemberS{Value: parts[0]},
		"recipient_id":    &types.AttributeValueMemberS{Value: recipientID},
		"created_at":      &types.AttributeValueMemberN{Value: parts[1]},
	}, nil
}
