package cache

import (
	"context"
	"errors"
	"time"

	"github.com/ammiranda/category_service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTableName is used when no table name is configured
	DefaultTableName = "CategoryTreeCache"
	treeItemKey      = "category_tree"
)

// DynamoDBAPI defines the interface for DynamoDB operations
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// CacheItem is the single DynamoDB item holding every cached page.
// Keeping all pages in one item lets InvalidateCache drop them with one delete.
type CacheItem struct {
	Key       string                `dynamodbav:"key"`
	Pages     map[string]CachedPage `dynamodbav:"pages"`
	Timestamp int64                 `dynamodbav:"timestamp"`
	TTL       int64                 `dynamodbav:"ttl"`
}

// CachedPage is one page of the tree with its own expiry
type CachedPage struct {
	Response  *models.PaginatedTreeResponse `dynamodbav:"response"`
	ExpiresAt int64                         `dynamodbav:"expiresAt"`
}

// DynamoDBCache implements CacheProvider using DynamoDB
type DynamoDBCache struct {
	client    DynamoDBAPI
	tableName string
	cacheTTL  time.Duration
}

// NewDynamoDBCache creates a new DynamoDB cache provider using the default
// AWS credential chain
func NewDynamoDBCache(tableName string) (*DynamoDBCache, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, err
	}
	return NewDynamoDBCacheWithClient(dynamodb.NewFromConfig(cfg), tableName), nil
}

// NewDynamoDBCacheWithClient creates a new DynamoDB cache provider with a custom client
func NewDynamoDBCacheWithClient(client DynamoDBAPI, tableName string) *DynamoDBCache {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &DynamoDBCache{
		client:    client,
		tableName: tableName,
		cacheTTL:  5 * time.Minute,
	}
}

// Initialize creates the DynamoDB table if it doesn't exist
func (c *DynamoDBCache) Initialize() error {
	ctx := context.TODO()

	_, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return err
	}

	_, err = c.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("key"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("key"),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func (c *DynamoDBCache) itemKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: treeItemKey},
	}
}

// load reads the cache item, returning nil when it is absent or unreadable
func (c *DynamoDBCache) load(ctx context.Context) *CacheItem {
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.itemKey(),
	})
	if err != nil {
		log.Warn().Err(err).Str("table", c.tableName).Msg("dynamodb cache read failed")
		return nil
	}
	if result.Item == nil {
		return nil
	}

	var item CacheItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		log.Warn().Err(err).Str("table", c.tableName).Msg("dynamodb cache item is malformed")
		return nil
	}
	return &item
}

// GetPaginatedTree retrieves a page of the tree from DynamoDB if available
func (c *DynamoDBCache) GetPaginatedTree(page, pageSize int) (*models.PaginatedTreeResponse, bool) {
	item := c.load(context.TODO())
	if item == nil {
		return nil, false
	}

	cached, ok := item.Pages[cacheKey(page, pageSize)]
	if !ok || cached.Response == nil || time.Now().Unix() > cached.ExpiresAt {
		return nil, false
	}
	return cached.Response, true
}

// SetPaginatedTree stores a page of the tree in DynamoDB. The other cached
// pages are carried over unless they have expired.
func (c *DynamoDBCache) SetPaginatedTree(page, pageSize int, response *models.PaginatedTreeResponse) {
	ctx := context.TODO()
	now := time.Now()

	item := c.load(ctx)
	if item == nil {
		item = &CacheItem{Key: treeItemKey}
	}
	if item.Pages == nil {
		item.Pages = make(map[string]CachedPage)
	}
	for key, cached := range item.Pages {
		if now.Unix() > cached.ExpiresAt {
			delete(item.Pages, key)
		}
	}

	expiresAt := now.Add(c.cacheTTL).Unix()
	item.Pages[cacheKey(page, pageSize)] = CachedPage{Response: response, ExpiresAt: expiresAt}
	item.Timestamp = now.Unix()
	if expiresAt > item.TTL {
		item.TTL = expiresAt
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode tree page for dynamodb")
		c.InvalidateCache()
		return
	}

	if _, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      av,
	}); err != nil {
		log.Warn().Err(err).Str("table", c.tableName).Msg("dynamodb cache write failed")
		c.InvalidateCache()
	}
}

// InvalidateCache removes every cached page from DynamoDB
func (c *DynamoDBCache) InvalidateCache() {
	if _, err := c.client.DeleteItem(context.TODO(), &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.itemKey(),
	}); err != nil {
		log.Warn().Err(err).Str("table", c.tableName).Msg("dynamodb cache invalidation failed")
	}
}

// SetCacheTTL sets the cache time-to-live duration
func (c *DynamoDBCache) SetCacheTTL(ttl time.Duration) {
	c.cacheTTL = ttl
}
