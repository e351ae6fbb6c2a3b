package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"contexthub-backend/domain/contexts"
	pkgerrors "contexthub-backend/pkg/errors"
)

// RelationshipRepository implements ports.RelationshipRepository on
// DynamoDB. Each relationship is written as two adjacency items, one
// on the source entry and a mirror on the target, so both directions
// are single-partition queries.
type RelationshipRepository struct {
	client    *dynamodb.Client
	tableName string
}

type relationshipRecord struct {
	PK               string                 `dynamodbav:"PK"`
	SK               string                 `dynamodbav:"SK"`
	RelationshipID   string                 `dynamodbav:"RelationshipID"`
	SourceID         string                 `dynamodbav:"SourceID"`
	TargetID         string                 `dynamodbav:"TargetID"`
	RelationshipType string                 `dynamodbav:"RelationshipType"`
	Metadata         map[string]interface{} `dynamodbav:"Metadata,omitempty"`
	CreatedAt        string                 `dynamodbav:"CreatedAt"`
}

// NewRelationshipRepository creates a DynamoDB-backed relationship repository
func NewRelationshipRepository(client *dynamodb.Client, tableName string) *RelationshipRepository {
	return &RelationshipRepository{
		client:    client,
		tableName: tableName,
	}
}

// Save implements ports.RelationshipRepository. Both adjacency items
// are written in one transaction so a traversal never sees half an
// edge.
func (r *RelationshipRepository) Save(ctx context.Context, rel *contexts.Relationship) error {
	outItem, err := attributevalue.MarshalMap(relToRecord(rel, relOutSK(rel), rel.SourceID))
	if err != nil {
		return pkgerrors.NewStorageError("save_relationship", fmt.Errorf("failed to marshal relationship record: %w", err))
	}
	inItem, err := attributevalue.MarshalMap(relToRecord(rel, relInSK(rel), rel.TargetID))
	if err != nil {
		return pkgerrors.NewStorageError("save_relationship", fmt.Errorf("failed to marshal relationship record: %w", err))
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: outItem}},
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: inItem}},
		},
	})
	if err != nil {
		return pkgerrors.NewStorageError("save_relationship", err)
	}
	return nil
}

// GetBySource implements ports.RelationshipRepository
func (r *RelationshipRepository) GetBySource(ctx context.Context, entryID string, relType contexts.RelationshipType) ([]*contexts.Relationship, error) {
	return r.queryAdjacency(ctx, entryID, "REL#OUT#", relType)
}

// GetByTarget implements ports.RelationshipRepository
func (r *RelationshipRepository) GetByTarget(ctx context.Context, entryID string, relType contexts.RelationshipType) ([]*contexts.Relationship, error) {
	return r.queryAdjacency(ctx, entryID, "REL#IN#", relType)
}

func (r *RelationshipRepository) queryAdjacency(ctx context.Context, entryID, prefix string, relType contexts.RelationshipType) ([]*contexts.Relationship, error) {
	skPrefix := prefix
	if relType != "" {
		skPrefix += string(relType) + "#"
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: entryPK(entryID)},
			":sk": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}

	var rels []*contexts.Relationship
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, pkgerrors.NewStorageError("query_relationships", err)
		}
		for _, item := range result.Items {
			var record relationshipRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, pkgerrors.NewStorageError("query_relationships", fmt.Errorf("failed to unmarshal relationship record: %w", err))
			}
			rel, err := recordToRel(record)
			if err != nil {
				return nil, err
			}
			rels = append(rels, rel)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return rels, nil
}

func relToRecord(rel *contexts.Relationship, sk, ownerID string) relationshipRecord {
	return relationshipRecord{
		PK:               entryPK(ownerID),
		SK:               sk,
		RelationshipID:   rel.ID,
		SourceID:         rel.SourceID,
		TargetID:         rel.TargetID,
		RelationshipType: string(rel.Type),
		Metadata:         rel.Metadata,
		CreatedAt:        rel.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func recordToRel(record relationshipRecord) (*contexts.Relationship, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, record.CreatedAt)
	if err != nil {
		return nil, pkgerrors.NewStorageError("decode_relationship", fmt.Errorf("invalid timestamp for %s: %w", record.RelationshipID, err))
	}
	return &contexts.Relationship{
		ID:        record.RelationshipID,
		SourceID:  record.SourceID,
		TargetID:  record.TargetID,
		Type:      contexts.RelationshipType(record.RelationshipType),
		Metadata:  record.Metadata,
		CreatedAt: createdAt,
	}, nil
}

func relOutSK(rel *contexts.Relationship) string {
	return fmt.Sprintf("REL#OUT#%s#%s", rel.Type, rel.ID)
}

func relInSK(rel *contexts.Relationship) string {
	return fmt.Sprintf("REL#IN#%s#%s", rel.Type, rel.ID)
}
