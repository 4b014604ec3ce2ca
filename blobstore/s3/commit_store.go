package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/quantgo/blobstore"
)

// CurrentName is the logical blob name routed through DynamoDB instead of S3.
// Its content is the name of the latest committed checkpoint.
const CurrentName = "CURRENT"

// ErrConcurrentCommit is returned when another trainer committed a newer
// checkpoint pointer between read and write.
var ErrConcurrentCommit = errors.New("concurrent checkpoint commit detected")

// DDBClient is the interface for the DynamoDB operations the commit store
// needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitStore wraps an S3-backed Store with a DynamoDB commit log so that the
// CURRENT checkpoint pointer is updated atomically. S3 alone offers no
// compare-and-swap; with the commit store, multiple trainers sharing one
// checkpoint prefix cannot silently overwrite each other's pointer.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 bucket/prefix
//   - Sort key: version (number) - monotonically increasing version
type CommitStore struct {
	store     *Store
	ddbClient DDBClient
	tableName string
	baseURI   string // S3 bucket/prefix used as partition key
}

// NewCommitStore creates a CommitStore over an S3 store.
// baseURI should be "s3://bucket/prefix", used as the partition key.
func NewCommitStore(store *Store, ddbClient DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		store:     store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Put implements blobstore.Store. Writing CurrentName commits a new pointer
// version through a DynamoDB conditional write; everything else goes to S3.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == CurrentName {
		return s.commit(ctx, string(data))
	}
	return s.store.Put(ctx, name, data)
}

// Get implements blobstore.Store. Reading CurrentName resolves the latest
// committed pointer from DynamoDB.
func (s *CommitStore) Get(ctx context.Context, name string) ([]byte, error) {
	if name == CurrentName {
		version, target, err := s.latest(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return []byte(target), nil
	}
	return s.store.Get(ctx, name)
}

// List implements blobstore.Store.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.store.List(ctx, prefix)
}

// Delete implements blobstore.Store.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	return s.store.Delete(ctx, name)
}

// latest queries DynamoDB for the highest committed version.
func (s *CommitStore) latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit log: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in commit log")
	}
	targetAttr, ok := item["target"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid target attribute in commit log")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("parse commit version: %w", err)
	}
	return version, targetAttr.Value, nil
}

// commit writes the next pointer version; the conditional expression rejects
// the write if another trainer claimed the version first.
func (s *CommitStore) commit(ctx context.Context, target string) error {
	currentVersion, _, err := s.latest(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri": &types.AttributeValueMemberS{Value: s.baseURI},
			"version":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", currentVersion+1)},
			"target":   &types.AttributeValueMemberS{Value: target},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("commit checkpoint pointer: %w", err)
	}
	return nil
}

var _ blobstore.Store = (*CommitStore)(nil)
