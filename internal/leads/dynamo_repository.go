package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

const (
	// CreatedAtIndex is the GSI that orders leads by creation time.
	CreatedAtIndex = "collection-sortKey-index"

	leadCollection   = "lead"
	sortKeyTimeFmt   = "2006-01-02T15:04:05.000000000Z"
	batchWriteLimit  = 25
	maxBatchAttempts = 5
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(context.Context, *dynamodb.BatchWriteItemInput, ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// dynamoLead adds the index attributes to the stored item.
type dynamoLead struct {
	Lead
	Collection string `dynamodbav:"collection"`
	SortKey    string `dynamodbav:"sortKey"`
}

// DynamoRepository persists leads to a DynamoDB table keyed by id.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
	now       func() time.Time
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided DynamoDB client.
func NewDynamoRepository(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("leads: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("leads: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func sortKeyFor(createdAt time.Time, id string) string {
	return createdAt.UTC().Format(sortKeyTimeFmt) + "#" + id
}

func (r *DynamoRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	if lead == nil {
		return nil, storageErr("create", errNilLead)
	}
	stored := lead.Clone()
	stored.ID = uuid.New().String()
	stored.CreatedAt = r.now().UTC()

	item, err := attributevalue.MarshalMap(dynamoLead{
		Lead:       *stored,
		Collection: leadCollection,
		SortKey:    sortKeyFor(stored.CreatedAt, stored.ID),
	})
	if err != nil {
		return nil, storageErr("create", fmt.Errorf("marshal lead: %w", err))
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, storageErr("create", err)
	}
	return stored, nil
}

func (r *DynamoRepository) Get(ctx context.Context, id string) (*Lead, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, storageErr("get", err)
	}
	if out.Item == nil {
		return nil, ErrLeadNotFound
	}
	lead, err := decodeDynamoLead(out.Item)
	if err != nil {
		return nil, storageErr("get", err)
	}
	return lead, nil
}

// ListPage queries the creation-time index in descending order, following
// LastEvaluatedKey until one row past the page is seen or the index is exhausted.
func (r *DynamoRepository) ListPage(ctx context.Context, cursor string) (*Page, error) {
	pos, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	keyCond := "#collection = :collection"
	values := map[string]types.AttributeValue{
		":collection": &types.AttributeValueMemberS{Value: leadCollection},
	}
	names := map[string]string{"#collection": "collection"}
	if pos != nil {
		keyCond += " AND #sortKey < :cursor"
		names["#sortKey"] = "sortKey"
		values[":cursor"] = &types.AttributeValueMemberS{Value: sortKeyFor(pos.CreatedAt, pos.ID)}
	}

	var (
		out       []*Lead
		startKey  map[string]types.AttributeValue
		remaining = PageSize + 1
	)
	for remaining > 0 {
		resp, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(CreatedAtIndex),
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ScanIndexForward:          aws.Bool(false),
			Limit:                     aws.Int32(int32(remaining)),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, storageErr("list", err)
		}
		for _, item := range resp.Items {
			lead, err := decodeDynamoLead(item)
			if err != nil {
				return nil, storageErr("list", err)
			}
			out = append(out, lead)
		}
		remaining = PageSize + 1 - len(out)
		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return buildPage(out), nil
}

// UpdateFields writes the present fields with a single conditional UpdateItem.
func (r *DynamoRepository) UpdateFields(ctx context.Context, id string, update LeadUpdate) error {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil
	}

	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	sets := make([]string, 0, len(fields))
	for i, f := range fields {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(f.Value)
		if err != nil {
			return storageErr("update", fmt.Errorf("marshal %s: %w", f.Attribute, err))
		}
		names[nameKey] = f.Attribute
		values[valueKey] = av
		sets = append(sets, nameKey+" = "+valueKey)
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrLeadNotFound
		}
		return storageErr("update", err)
	}
	return nil
}

// DeleteAll scans the table for keys and deletes them in batches of 25.
func (r *DynamoRepository) DeleteAll(ctx context.Context) (int, error) {
	deleted := 0
	var startKey map[string]types.AttributeValue
	for {
		resp, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(r.tableName),
			ProjectionExpression: aws.String("id"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return deleted, storageErr("delete all", err)
		}
		for start := 0; start < len(resp.Items); start += batchWriteLimit {
			end := min(start+batchWriteLimit, len(resp.Items))
			n, err := r.deleteBatch(ctx, resp.Items[start:end])
			deleted += n
			if err != nil {
				return deleted, storageErr("delete all", err)
			}
		}
		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	r.logger.Info("leads deleted", "table", r.tableName, "count", deleted)
	return deleted, nil
}

func (r *DynamoRepository) deleteBatch(ctx context.Context, keys []map[string]types.AttributeValue) (int, error) {
	requests := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{"id": key["id"]}},
		})
	}

	total := len(requests)
	for attempt := 0; attempt < maxBatchAttempts && len(requests) > 0; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return total - len(requests), ctx.Err()
			case <-time.After(time.Duration(attempt*50) * time.Millisecond):
			}
		}
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: requests},
		})
		if err != nil {
			return total - len(requests), err
		}
		requests = out.UnprocessedItems[r.tableName]
	}
	if len(requests) > 0 {
		return total - len(requests), fmt.Errorf("%d deletes left unprocessed", len(requests))
	}
	return total, nil
}

func decodeDynamoLead(item map[string]types.AttributeValue) (*Lead, error) {
	var stored dynamoLead
	if err := attributevalue.UnmarshalMap(item, &stored); err != nil {
		return nil, fmt.Errorf("decode lead: %w", err)
	}
	lead := stored.Lead
	return &lead, nil
}
