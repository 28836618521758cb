package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"mentor-relay/internal/domain"
)

const (
	attrPhone    = "phone"
	attrTS       = "timestamp"
	attrReceived = "received_message"
	attrSent     = "sent_message"
	attrPersona  = "mentor_type"
	attrName     = "name"

	// sequenceLayout is fixed width so lexical order matches time order.
	sequenceLayout = "2006-01-02T15:04:05.000000000Z"

	defaultWaitTimeout = 5 * time.Minute
	provisionedUnits   = 10
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, in *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// StoreError reports a failed read or write against the history table.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("repository: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Client wraps a DynamoDB table holding per-sender exchange history.
type Client struct {
	api         dynamodbAPI
	tableName   string
	waitTimeout time.Duration
	now         func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, waitTimeout: defaultWaitTimeout, now: time.Now}, nil
}

// TableName returns the backing table name.
func (c *Client) TableName() string {
	return c.tableName
}

// SequenceKey formats ts as a sort key.
func SequenceKey(ts time.Time) string {
	return ts.UTC().Format(sequenceLayout)
}

// Exists reports whether the history table is provisioned.
func (c *Client) Exists(ctx context.Context) (bool, error) {
	_, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.tableName)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("repository: Exists describe %s: %w", c.tableName, err)
	}
	return true, nil
}

// Create provisions the history table and waits until it is active.
func (c *Client) Create(ctx context.Context) error {
	_, err := c.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.tableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPhone), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrTS), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPhone), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrTS), AttributeType: types.ScalarAttributeTypeS},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(provisionedUnits),
			WriteCapacityUnits: aws.Int64(provisionedUnits),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Create %s: %w", c.tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(c.api)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.tableName)}, c.waitTimeout); err != nil {
		return fmt.Errorf("repository: Create wait for %s: %w", c.tableName, err)
	}
	return nil
}

// Delete removes the history table and waits until it is gone.
func (c *Client) Delete(ctx context.Context) error {
	_, err := c.api.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(c.tableName)})
	if err != nil {
		return fmt.Errorf("repository: Delete %s: %w", c.tableName, err)
	}

	waiter := dynamodb.NewTableNotExistsWaiter(c.api)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.tableName)}, c.waitTimeout); err != nil {
		return fmt.Errorf("repository: Delete wait for %s: %w", c.tableName, err)
	}
	return nil
}

// Recreate drops the table if present and provisions it again.
func (c *Client) Recreate(ctx context.Context) error {
	exists, err := c.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err := c.Delete(ctx); err != nil {
			return err
		}
	}
	return c.Create(ctx)
}

// Append durably writes one exchange. An empty sequence key is stamped from
// the client clock. A second write with the same sender and sequence key is
// rejected rather than overwriting history.
func (c *Client) Append(ctx context.Context, ex domain.Exchange) error {
	if ex.SenderKey == "" {
		return &StoreError{Op: "append", Err: errors.New("sender key is required")}
	}
	if ex.SequenceKey == "" {
		ex.SequenceKey = SequenceKey(c.now())
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.tableName),
		Item:                     exchangeItem(ex),
		ConditionExpression:      aws.String("attribute_not_exists(#phone) AND attribute_not_exists(#ts)"),
		ExpressionAttributeNames: map[string]string{"#phone": attrPhone, "#ts": attrTS},
	})
	if err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	return nil
}

// Query returns every exchange for sender in ascending sequence order.
func (c *Client) Query(ctx context.Context, sender string) ([]domain.Exchange, error) {
	in := &dynamodb.QueryInput{
		TableName:                aws.String(c.tableName),
		KeyConditionExpression:   aws.String("#phone = :phone"),
		ExpressionAttributeNames: map[string]string{"#phone": attrPhone},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phone": &types.AttributeValueMemberS{Value: sender},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var exchanges []domain.Exchange
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, &StoreError{Op: "query", Err: err}
		}
		for _, item := range out.Items {
			ex, err := itemToExchange(item)
			if err != nil {
				return nil, &StoreError{Op: "query", Err: err}
			}
			exchanges = append(exchanges, ex)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return exchanges, nil
}

func exchangeItem(ex domain.Exchange) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		attrPhone:    &types.AttributeValueMemberS{Value: ex.SenderKey},
		attrTS:       &types.AttributeValueMemberS{Value: ex.SequenceKey},
		attrReceived: &types.AttributeValueMemberS{Value: ex.ReceivedText},
		attrSent:     &types.AttributeValueMemberS{Value: ex.SentText},
		attrPersona:  &types.AttributeValueMemberS{Value: ex.Persona},
	}
	if ex.DisplayName != "" {
		item[attrName] = &types.AttributeValueMemberS{Value: ex.DisplayName}
	}
	return item
}

// itemToExchange converts a DynamoDB attribute map to an Exchange.
func itemToExchange(item map[string]types.AttributeValue) (domain.Exchange, error) {
	phone, err := strAttr(item, attrPhone)
	if err != nil {
		return domain.Exchange{}, err
	}
	ts, err := strAttr(item, attrTS)
	if err != nil {
		return domain.Exchange{}, err
	}
	received, _ := optionalStrAttr(item, attrReceived)
	sent, _ := optionalStrAttr(item, attrSent)
	persona, _ := optionalStrAttr(item, attrPersona)
	name, _ := optionalStrAttr(item, attrName)

	return domain.Exchange{
		SenderKey:    phone,
		SequenceKey:  ts,
		ReceivedText: received,
		SentText:     sent,
		Persona:      persona,
		DisplayName:  name,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

// optionalStrAttr tolerates absent and NULL attributes written by older
// revisions of the table.
func optionalStrAttr(item map[string]types.AttributeValue, key string) (string, bool) {
	s, ok := item[key].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}
