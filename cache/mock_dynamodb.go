package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrMockDynamoDB is returned by every MockDynamoDBClient call while Fail is set
var ErrMockDynamoDB = errors.New("mock dynamodb failure")

// MockDynamoDBClient implements DynamoDBAPI for testing. Items are stored
// whole, keyed by table and by their "key" attribute.
type MockDynamoDBClient struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]types.AttributeValue
	Fail   bool
}

// NewMockDynamoDBClient creates a new mock DynamoDB client without tables
func NewMockDynamoDBClient() *MockDynamoDBClient {
	return &MockDynamoDBClient{
		tables: make(map[string]map[string]map[string]types.AttributeValue),
	}
}

// SetFail makes every subsequent call return ErrMockDynamoDB
func (m *MockDynamoDBClient) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fail = fail
}

// HasTable reports whether CreateTable was called for name
func (m *MockDynamoDBClient) HasTable(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tables[name]
	return ok
}

// ItemCount returns the number of items stored in a table
func (m *MockDynamoDBClient) ItemCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[name])
}

// CreateTable mocks the CreateTable operation
func (m *MockDynamoDBClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrMockDynamoDB
	}

	tableName := aws.ToString(params.TableName)
	if _, ok := m.tables[tableName]; !ok {
		m.tables[tableName] = make(map[string]map[string]types.AttributeValue)
	}
	return &dynamodb.CreateTableOutput{}, nil
}

// DescribeTable mocks the DescribeTable operation
func (m *MockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail {
		return nil, ErrMockDynamoDB
	}

	tableName := aws.ToString(params.TableName)
	if _, ok := m.tables[tableName]; !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + tableName)}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   aws.String(tableName),
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

// GetItem mocks the GetItem operation
func (m *MockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail {
		return nil, ErrMockDynamoDB
	}

	items, ok := m.tables[aws.ToString(params.TableName)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: params.TableName}
	}
	item, ok := items[itemKeyOf(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

// PutItem mocks the PutItem operation
func (m *MockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrMockDynamoDB
	}

	items, ok := m.tables[aws.ToString(params.TableName)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: params.TableName}
	}
	items[itemKeyOf(params.Item)] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem mocks the DeleteItem operation
func (m *MockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrMockDynamoDB
	}

	items, ok := m.tables[aws.ToString(params.TableName)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: params.TableName}
	}
	delete(items, itemKeyOf(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func itemKeyOf(attrs map[string]types.AttributeValue) string {
	if s, ok := attrs["key"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	cp := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		cp[k] = v
	}
	return cp
}
