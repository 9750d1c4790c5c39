package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/plant-store/internal/apperr"
	"github.com/example/plant-store/internal/config"
)

// DynamoDocumentStore stores carts and wishlists in a single DynamoDB table
// keyed by aggregate_id = "<kind>#<userId>".
type DynamoDocumentStore struct {
	client    *dynamodb.Client
	tableName string
	timeout   time.Duration
}

// dynamoDocument represents the DynamoDB item structure
type dynamoDocument struct {
	AggregateID string `dynamodbav:"aggregate_id"`
	Kind        string `dynamodbav:"kind"`
	UserID      string `dynamodbav:"user_id"`
	Version     int64  `dynamodbav:"version"`
	Document    string `dynamodbav:"document"`
	UpdatedAt   string `dynamodbav:"updated_at"`
}

// NewDynamoClient builds a client from the default AWS credential chain.
// A non-empty endpoint points it at a local emulator.
func NewDynamoClient(ctx context.Context, cfg config.DynamoConfig) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func NewDynamoDocumentStore(client *dynamodb.Client, tableName string, timeout time.Duration) *DynamoDocumentStore {
	return &DynamoDocumentStore{
		client:    client,
		tableName: tableName,
		timeout:   timeout,
	}
}

func dynamoKey(kind, userID string) string {
	return kind + "#" + userID
}

func (s *DynamoDocumentStore) LoadDocument(ctx context.Context, kind, userID string) (*Document, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"aggregate_id": &types.AttributeValueMemberS{Value: dynamoKey(kind, userID)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("load "+kind, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item dynamoDocument
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, apperr.Internal("", fmt.Errorf("failed to unmarshal %s: %w", kind, err))
	}
	return documentFromItem(kind, &item)
}

func documentFromItem(kind string, item *dynamoDocument) (*Document, error) {
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, apperr.Internal("", fmt.Errorf("failed to decode %s updated_at %q: %w", kind, item.UpdatedAt, err))
	}
	return &Document{
		Kind:      item.Kind,
		UserID:    item.UserID,
		Version:   item.Version,
		Body:      []byte(item.Document),
		UpdatedAt: updatedAt,
	}, nil
}

func (s *DynamoDocumentStore) SaveDocument(ctx context.Context, doc *Document, expected int64) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	item := dynamoDocument{
		AggregateID: dynamoKey(doc.Kind, doc.UserID),
		Kind:        doc.Kind,
		UserID:      doc.UserID,
		Version:     doc.Version,
		Document:    string(doc.Body),
		UpdatedAt:   doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return apperr.Internal("", fmt.Errorf("failed to marshal %s: %w", doc.Kind, err))
	}

	// Conditional write on the version gives optimistic locking
	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}
	if expected == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(aggregate_id)")
	} else {
		input.ConditionExpression = aws.String("version = :expected")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		}
	}

	_, err = s.client.PutItem(ctx, input)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return apperr.Conflict("Document was modified concurrently, please retry")
	}
	return classify("save "+doc.Kind, err)
}
