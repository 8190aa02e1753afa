package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/notify-dispatch/internal/domain"
)

// RequestRepo provides typed DynamoDB operations for the notification requests table.
type RequestRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRequestRepo(client *dynamodb.Client, tableName string) *RequestRepo {
	return &RequestRepo{client: client, tableName: tableName}
}

func (r *RequestRepo) Put(ctx context.Context, req *domain.NotificationRequest) error {
	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *RequestRepo) Get(ctx context.Context, requestID string) (*domain.NotificationRequest, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("request_id", requestID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("request not found: %w", domain.ErrNotFound)
	}
	var req domain.NotificationRequest
	if err := attributevalue.UnmarshalMap(out.Item, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepo) UpdateStatus(ctx context.Context, requestID string, status domain.RequestStatus) error {
	return r.update(ctx, requestID, map[string]interface{}{fieldStatus: string(status)})
}

func (r *RequestRepo) SaveStats(ctx context.Context, requestID string, stats *domain.RequestStats) error {
	return r.update(ctx, requestID, map[string]interface{}{fieldStats: stats})
}

func (r *RequestRepo) update(ctx context.Context, requestID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("request_id", requestID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *RequestRepo) Delete(ctx context.Context, requestID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("request_id", requestID),
	})
	return err
}

// ListByTenant returns a page of requests, newest first.
// cursor is an opaque token produced by a previous page.
func (r *RequestRepo) ListByTenant(ctx context.Context, tenantID string, limit int32, cursor string) ([]domain.NotificationRequest, string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("tenant_id-created_at-index"),
		KeyConditionExpression: aws.String("tenant_id = :tid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: tenantID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	}
	if cursor != "" {
		startKey, err := decodeRequestCursor(cursor, tenantID)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = startKey
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, "", err
	}
	var reqs []domain.NotificationRequest
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &reqs); err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if out.LastEvaluatedKey != nil {
		nextCursor = encodeRequestCursor(out.LastEvaluatedKey)
	}
	return reqs, nextCursor, nil
}

// ListScheduled returns every request still in SCHEDULED state, across tenants.
func (r *RequestRepo) ListScheduled(ctx context.Context) ([]domain.NotificationRequest, error) {
	var reqs []domain.NotificationRequest
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("status-index"),
			KeyConditionExpression: aws.String("#s = :scheduled"),
			ExpressionAttributeNames: map[string]string{"#s": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":scheduled": &types.AttributeValueMemberS{Value: string(domain.RequestScheduled)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.NotificationRequest
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		reqs = append(reqs, page...)
		if out.LastEvaluatedKey == nil {
			return reqs, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// The GSI page key is (tenant_id, created_at, request_id); tenant_id is
// re-derived from the caller so the cursor only carries the other two.
func encodeRequestCursor(key map[string]types.AttributeValue) string {
	var requestID, createdAt string
	if v, ok := key["request_id"].(*types.AttributeValueMemberS); ok {
		requestID = v.Value
	}
	if v, ok := key["created_at"].(*types.AttributeValueMemberN); ok {
		createdAt = v.Value
	}
	return encodeCursor(requestID + "|" + createdAt)
}

func decodeRequestCursor(cursor, tenantID string) (map[string]types.AttributeValue, error) {
	raw, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(raw, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("malformed cursor")
	}
	return map[string]types.AttributeValue{
		"request_id": &types.AttributeValueMemberS{Value: parts[0]},
		"tenant_id":  &types.AttributeValueMemberS{Value: tenantID},
		"created_at": &types.AttributeValueMemberN{Value: parts[1]},
	}, nil
}
