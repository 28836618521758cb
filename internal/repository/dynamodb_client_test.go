package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"mentor-relay/internal/domain"
)

type fakeDynamo struct {
	describeOut  *dynamodb.DescribeTableOutput
	describeErr  error
	describeErrs []error
	createErr    error
	deleteErr    error
	putErr       error
	queryPages   []*dynamodb.QueryOutput
	queryErr     error

	describeCalls int
	createIn      *dynamodb.CreateTableInput
	deleteIn      *dynamodb.DeleteTableInput
	lastPutInput  *dynamodb.PutItemInput
	queryInputs   []dynamodb.QueryInput
}

func (f *fakeDynamo) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	idx := f.describeCalls
	f.describeCalls++
	if idx < len(f.describeErrs) && f.describeErrs[idx] != nil {
		return nil, f.describeErrs[idx]
	}
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return f.describeOut, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.createIn = in
	return &dynamodb.CreateTableOutput{}, f.createErr
}

func (f *fakeDynamo) DeleteTable(_ context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	f.deleteIn = in
	return &dynamodb.DeleteTableOutput{}, f.deleteErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, *in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	idx := len(f.queryInputs) - 1
	if idx >= len(f.queryPages) {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.queryPages[idx], nil
}

func activeTable() *dynamodb.DescribeTableOutput {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: types.TableStatusActive}}
}

func notFound() error {
	return &types.ResourceNotFoundException{Message: aws.String("Requested resource not found")}
}

func makeItem(phone, ts, received, sent, persona string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPhone:    &types.AttributeValueMemberS{Value: phone},
		attrTS:       &types.AttributeValueMemberS{Value: ts},
		attrReceived: &types.AttributeValueMemberS{Value: received},
		attrSent:     &types.AttributeValueMemberS{Value: sent},
		attrPersona:  &types.AttributeValueMemberS{Value: persona},
	}
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "interactions")
	require.NoError(t, err)
	c.waitTimeout = 5 * time.Second
	return c
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "interactions")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}

func TestExists(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{describeOut: activeTable()})
	ok, err := c.Exists(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	c = mustNewClient(t, &fakeDynamo{describeErr: notFound()})
	ok, err = c.Exists(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	c = mustNewClient(t, &fakeDynamo{describeErr: errors.New("AccessDeniedException")})
	_, err = c.Exists(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "Exists")
}

func TestCreate_KeySchemaAndWait(t *testing.T) {
	db := &fakeDynamo{describeOut: activeTable()}
	c := mustNewClient(t, db)

	require.NoError(t, c.Create(context.Background()))
	require.NotNil(t, db.createIn)
	require.Equal(t, "interactions", *db.createIn.TableName)
	require.Len(t, db.createIn.KeySchema, 2)
	require.Equal(t, attrPhone, *db.createIn.KeySchema[0].AttributeName)
	require.Equal(t, types.KeyTypeHash, db.createIn.KeySchema[0].KeyType)
	require.Equal(t, attrTS, *db.createIn.KeySchema[1].AttributeName)
	require.Equal(t, types.KeyTypeRange, db.createIn.KeySchema[1].KeyType)
	require.GreaterOrEqual(t, db.describeCalls, 1)
}

func TestCreate_Error(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{createErr: errors.New("LimitExceededException")})
	err := c.Create(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "Create")
}

func TestDelete_WaitsForRemoval(t *testing.T) {
	db := &fakeDynamo{describeErr: notFound()}
	c := mustNewClient(t, db)

	require.NoError(t, c.Delete(context.Background()))
	require.Equal(t, "interactions", *db.deleteIn.TableName)
}

func TestRecreate_DeletesExistingTable(t *testing.T) {
	db := &fakeDynamo{
		describeOut:  activeTable(),
		describeErrs: []error{nil, notFound()},
	}
	c := mustNewClient(t, db)

	require.NoError(t, c.Recreate(context.Background()))
	require.NotNil(t, db.deleteIn)
	require.NotNil(t, db.createIn)
}

func TestRecreate_SkipsDeleteWhenMissing(t *testing.T) {
	db := &fakeDynamo{
		describeOut:  activeTable(),
		describeErrs: []error{notFound()},
	}
	c := mustNewClient(t, db)

	require.NoError(t, c.Recreate(context.Background()))
	require.Nil(t, db.deleteIn)
	require.NotNil(t, db.createIn)
}

func TestAppend_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	ex := testExchange("whatsapp:+15551234", "I want to sell peanuts", "Great idea.", domain.PersonaLocal, "Amina", time.Now())

	require.NoError(t, c.Append(context.Background(), ex))
	item := db.lastPutInput.Item
	require.Equal(t, "whatsapp:+15551234", item[attrPhone].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "Great idea.", item[attrSent].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "local", item[attrPersona].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "Amina", item[attrName].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "attribute_not_exists(#phone) AND attribute_not_exists(#ts)", *db.lastPutInput.ConditionExpression)
}

func TestAppend_OmitsEmptyName(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	require.NoError(t, c.Append(context.Background(), testExchange("+1", "hi", "hello", domain.PersonaGeneral, "", time.Now())))
	_, ok := db.lastPutInput.Item[attrName]
	require.False(t, ok)
}

func TestAppend_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ConditionalCheckFailedException")}
	c := mustNewClient(t, db)
	err := c.Append(context.Background(), testExchange("+1", "hi", "hello", domain.PersonaGeneral, "", time.Now()))

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "append", storeErr.Op)
	require.Contains(t, err.Error(), "ConditionalCheckFailedException")
}

func TestAppend_MissingSender(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	err := c.Append(context.Background(), domain.Exchange{SequenceKey: "ts"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
	require.Nil(t, db.lastPutInput)
}

func TestAppend_StampsSequenceKey(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 5, time.FixedZone("EAT", 3*3600)) }

	require.NoError(t, c.Append(context.Background(), domain.Exchange{SenderKey: "+1", ReceivedText: "hi", SentText: "hello", Persona: "general"}))
	require.Equal(t, "2026-03-01T06:30:00.000000005Z", db.lastPutInput.Item[attrTS].(*types.AttributeValueMemberS).Value)
}

func TestQuery_HappyPath(t *testing.T) {
	db := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{
			makeItem("+1", "2026-01-01T10:00:00.000000000Z", "hi", "welcome", "refugee"),
			makeItem("+1", "2026-01-01T10:01:00.000000000Z", "peanuts", "analysis", "refugee"),
		},
	}}}
	c := mustNewClient(t, db)

	got, err := c.Query(context.Background(), "+1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "hi", got[0].ReceivedText)
	require.Equal(t, "analysis", got[1].SentText)
	require.Equal(t, "refugee", got[1].Persona)

	in := db.queryInputs[0]
	require.Equal(t, "#phone = :phone", *in.KeyConditionExpression)
	require.True(t, *in.ScanIndexForward)
	require.True(t, *in.ConsistentRead)
}

func TestQuery_FollowsPagination(t *testing.T) {
	lastKey := map[string]types.AttributeValue{
		attrPhone: &types.AttributeValueMemberS{Value: "+1"},
		attrTS:    &types.AttributeValueMemberS{Value: "2026-01-01T10:00:00.000000000Z"},
	}
	db := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{makeItem("+1", "2026-01-01T10:00:00.000000000Z", "a", "b", "local")}, LastEvaluatedKey: lastKey},
		{Items: []map[string]types.AttributeValue{makeItem("+1", "2026-01-01T10:05:00.000000000Z", "c", "d", "local")}},
	}}
	c := mustNewClient(t, db)

	got, err := c.Query(context.Background(), "+1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Len(t, db.queryInputs, 2)
	require.Nil(t, db.queryInputs[0].ExclusiveStartKey)
	require.Equal(t, lastKey, db.queryInputs[1].ExclusiveStartKey)
}

func TestQuery_EmptyResult(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	got, err := c.Query(context.Background(), "+1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestQuery_Error(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")})
	_, err := c.Query(context.Background(), "+1")

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "query", storeErr.Op)
}

func TestQuery_MalformedItem(t *testing.T) {
	item := map[string]types.AttributeValue{attrPhone: &types.AttributeValueMemberS{Value: "+1"}}
	c := mustNewClient(t, &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{item}}}})
	_, err := c.Query(context.Background(), "+1")
	require.Error(t, err)
	require.Contains(t, err.Error(), attrTS)
}

func TestQuery_ToleratesLegacyNullName(t *testing.T) {
	item := makeItem("+1", "12-21-24 10:19:23 UTC", "hi", "hello", "refugee mentor")
	item[attrName] = &types.AttributeValueMemberNULL{Value: true}
	c := mustNewClient(t, &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{item}}}})

	got, err := c.Query(context.Background(), "+1")
	require.NoError(t, err)
	require.Empty(t, got[0].DisplayName)
	require.Equal(t, "refugee mentor", got[0].Persona)
}

func TestSequenceKey_SortsChronologically(t *testing.T) {
	base := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	a := SequenceKey(base.Add(100 * time.Millisecond))
	b := SequenceKey(base.Add(150 * time.Millisecond))
	c := SequenceKey(base.Add(time.Second))
	require.Less(t, a, b)
	require.Less(t, b, c)
	require.Equal(t, "2026-02-25T10:00:00.100000000Z", a)
}

func testExchange(sender, received, sent string, persona domain.Persona, name string, now time.Time) domain.Exchange {
	return domain.Exchange{
		SenderKey:    sender,
		SequenceKey:  SequenceKey(now),
		ReceivedText: received,
		SentText:     sent,
		Persona:      persona.String(),
		DisplayName:  name,
	}
}
