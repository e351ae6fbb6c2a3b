// Package dynamodb persists context entries and relationships in a
// single DynamoDB table.
//
// Key layout:
//
//	Entry        PK=ENTRY#<id>                SK=META
//	             GSI1PK=PROJECT#<project>     GSI1SK=TS#<nanos>#<id>
//	  artifacts  GSI2PK=ARTIFACT#<project>#<name>  GSI2SK=V#<version, zero padded>
//	Counter      PK=ARTIFACTSEQ#<project>#<name>   SK=COUNTER
//	Relationship PK=ENTRY#<source>            SK=REL#OUT#<type>#<rel id>
//	  mirror     PK=ENTRY#<target>            SK=REL#IN#<type>#<rel id>
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"contexthub-backend/application/ports"
	"contexthub-backend/domain/contexts"
	pkgerrors "contexthub-backend/pkg/errors"
)

// EntryRepository implements ports.EntryRepository on DynamoDB
type EntryRepository struct {
	client        *dynamodb.Client
	tableName     string
	projectIndex  string
	artifactIndex string
}

// entryRecord is the DynamoDB shape of a context entry. Content is
// stored as its canonical JSON so the tagged union round-trips through
// its own codec.
type entryRecord struct {
	PK                 string                 `dynamodbav:"PK"`
	SK                 string                 `dynamodbav:"SK"`
	EntryID            string                 `dynamodbav:"EntryID"`
	EntryType          string                 `dynamodbav:"EntryType"`
	Timestamp          string                 `dynamodbav:"Timestamp"`
	ProjectID          string                 `dynamodbav:"ProjectID"`
	UserID             string                 `dynamodbav:"UserID,omitempty"`
	AgentID            string                 `dynamodbav:"AgentID,omitempty"`
	Source             string                 `dynamodbav:"Source,omitempty"`
	ContentJSON        string                 `dynamodbav:"ContentJSON"`
	Tags               []string               `dynamodbav:"Tags,omitempty"`
	Metadata           map[string]interface{} `dynamodbav:"Metadata,omitempty"`
	ArtifactName       string                 `dynamodbav:"ArtifactName,omitempty"`
	ArtifactVersion    int                    `dynamodbav:"ArtifactVersion,omitempty"`
	ParentVersionID    string                 `dynamodbav:"ParentVersionID,omitempty"`
	SummarizedEntryIDs []string               `dynamodbav:"SummarizedEntryIDs,omitempty"`

	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	GSI2PK string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK string `dynamodbav:"GSI2SK,omitempty"`
}

// NewEntryRepository creates a DynamoDB-backed entry repository
func NewEntryRepository(client *dynamodb.Client, tableName, projectIndex, artifactIndex string) *EntryRepository {
	return &EntryRepository{
		client:        client,
		tableName:     tableName,
		projectIndex:  projectIndex,
		artifactIndex: artifactIndex,
	}
}

// Save implements ports.EntryRepository
func (r *EntryRepository) Save(ctx context.Context, entry *contexts.Entry) error {
	record, err := entryToRecord(entry)
	if err != nil {
		return pkgerrors.NewStorageError("save_entry", err)
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return pkgerrors.NewStorageError("save_entry", fmt.Errorf("failed to marshal entry record: %w", err))
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return pkgerrors.NewConflictError("entry " + entry.ID + " already exists")
		}
		return pkgerrors.NewStorageError("save_entry", err)
	}
	return nil
}

// GetByID implements ports.EntryRepository
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*contexts.Entry, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: entryPK(id)},
			"SK": &types.AttributeValueMemberS{Value: "META"},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewStorageError("get_entry", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var record entryRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, pkgerrors.NewStorageError("get_entry", fmt.Errorf("failed to unmarshal entry record: %w", err))
	}
	return recordToEntry(record)
}

// GetByProject implements ports.EntryRepository. Offsets are applied
// client-side while paging the project timeline index.
func (r *EntryRepository) GetByProject(ctx context.Context, query ports.EntryQuery) ([]*contexts.Entry, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(projectPK(query.ProjectID)))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if query.EntryType != "" {
		builder = builder.WithFilter(expression.Name("EntryType").Equal(expression.Value(string(query.EntryType))))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.NewStorageError("list_project", fmt.Errorf("failed to build expression: %w", err))
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.projectIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}

	entries := make([]*contexts.Entry, 0, query.Limit)
	toSkip := query.Offset

	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, pkgerrors.NewStorageError("list_project", err)
		}

		for _, item := range result.Items {
			if toSkip > 0 {
				toSkip--
				continue
			}
			var record entryRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, pkgerrors.NewStorageError("list_project", fmt.Errorf("failed to unmarshal entry record: %w", err))
			}
			entry, err := recordToEntry(record)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
			if query.Limit > 0 && len(entries) == query.Limit {
				return entries, nil
			}
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return entries, nil
}

// GetLatestArtifact implements ports.EntryRepository
func (r *EntryRepository) GetLatestArtifact(ctx context.Context, projectID, name string) (*contexts.Entry, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.artifactIndex),
		KeyConditionExpression: aws.String("GSI2PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: artifactPK(projectID, name)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewStorageError("get_latest_artifact", err)
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	var record entryRecord
	if err := attributevalue.UnmarshalMap(result.Items[0], &record); err != nil {
		return nil, pkgerrors.NewStorageError("get_latest_artifact", fmt.Errorf("failed to unmarshal entry record: %w", err))
	}
	return recordToEntry(record)
}

// GetArtifactByVersion implements ports.EntryRepository
func (r *EntryRepository) GetArtifactByVersion(ctx context.Context, projectID, name string, version int) (*contexts.Entry, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.artifactIndex),
		KeyConditionExpression: aws.String("GSI2PK = :pk AND GSI2SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: artifactPK(projectID, name)},
			":sk": &types.AttributeValueMemberS{Value: artifactSK(version)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewStorageError("get_artifact_version", err)
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	var record entryRecord
	if err := attributevalue.UnmarshalMap(result.Items[0], &record); err != nil {
		return nil, pkgerrors.NewStorageError("get_artifact_version", fmt.Errorf("failed to unmarshal entry record: %w", err))
	}
	return recordToEntry(record)
}

// GetArtifactVersions implements ports.EntryRepository
func (r *EntryRepository) GetArtifactVersions(ctx context.Context, projectID, name string) ([]*contexts.Entry, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.artifactIndex),
		KeyConditionExpression: aws.String("GSI2PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: artifactPK(projectID, name)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var entries []*contexts.Entry
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, pkgerrors.NewStorageError("get_artifact_versions", err)
		}
		for _, item := range result.Items {
			var record entryRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, pkgerrors.NewStorageError("get_artifact_versions", fmt.Errorf("failed to unmarshal entry record: %w", err))
			}
			entry, err := recordToEntry(record)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return entries, nil
}

// NextArtifactVersion implements ports.EntryRepository. The atomic ADD
// on the counter item guarantees distinct consecutive versions across
// processes.
func (r *EntryRepository) NextArtifactVersion(ctx context.Context, projectID, name string) (int, error) {
	update := expression.Add(expression.Name("CurrentVersion"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, pkgerrors.NewStorageError("next_version", fmt.Errorf("failed to build expression: %w", err))
	}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ARTIFACTSEQ#%s#%s", projectID, name)},
			"SK": &types.AttributeValueMemberS{Value: "COUNTER"},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, pkgerrors.NewStorageError("next_version", err)
	}

	attr, ok := result.Attributes["CurrentVersion"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, pkgerrors.NewStorageError("next_version", fmt.Errorf("counter attribute missing from update result"))
	}
	version, err := strconv.Atoi(attr.Value)
	if err != nil {
		return 0, pkgerrors.NewStorageError("next_version", fmt.Errorf("invalid counter value %q: %w", attr.Value, err))
	}
	return version, nil
}

func entryToRecord(entry *contexts.Entry) (entryRecord, error) {
	contentJSON, err := json.Marshal(entry.Content)
	if err != nil {
		return entryRecord{}, fmt.Errorf("failed to marshal content: %w", err)
	}

	record := entryRecord{
		PK:                 entryPK(entry.ID),
		SK:                 "META",
		EntryID:            entry.ID,
		EntryType:          string(entry.EntryType),
		Timestamp:          entry.Timestamp.UTC().Format(time.RFC3339Nano),
		ProjectID:          entry.ProjectID,
		UserID:             entry.UserID,
		AgentID:            entry.AgentID,
		Source:             entry.Source,
		ContentJSON:        string(contentJSON),
		Tags:               entry.Tags,
		Metadata:           entry.Metadata,
		ArtifactName:       entry.ArtifactName,
		ArtifactVersion:    entry.Version,
		ParentVersionID:    entry.ParentVersionID,
		SummarizedEntryIDs: entry.SummarizedEntryIDs,
		GSI1PK:             projectPK(entry.ProjectID),
		GSI1SK:             fmt.Sprintf("TS#%020d#%s", entry.Timestamp.UTC().UnixNano(), entry.ID),
	}
	if entry.IsArtifact() {
		record.GSI2PK = artifactPK(entry.ProjectID, entry.ArtifactName)
		record.GSI2SK = artifactSK(entry.Version)
	}
	return record, nil
}

func recordToEntry(record entryRecord) (*contexts.Entry, error) {
	var content contexts.Content
	if err := json.Unmarshal([]byte(record.ContentJSON), &content); err != nil {
		return nil, pkgerrors.NewStorageError("decode_entry", fmt.Errorf("failed to unmarshal content for %s: %w", record.EntryID, err))
	}

	timestamp, err := time.Parse(time.RFC3339Nano, record.Timestamp)
	if err != nil {
		return nil, pkgerrors.NewStorageError("decode_entry", fmt.Errorf("invalid timestamp for %s: %w", record.EntryID, err))
	}

	return &contexts.Entry{
		ID:                 record.EntryID,
		EntryType:          contexts.EntryType(record.EntryType),
		Timestamp:          timestamp,
		ProjectID:          record.ProjectID,
		UserID:             record.UserID,
		AgentID:            record.AgentID,
		Source:             record.Source,
		Content:            content,
		Tags:               record.Tags,
		Metadata:           record.Metadata,
		ArtifactName:       record.ArtifactName,
		Version:            record.ArtifactVersion,
		ParentVersionID:    record.ParentVersionID,
		SummarizedEntryIDs: record.SummarizedEntryIDs,
	}, nil
}

func entryPK(id string) string {
	return "ENTRY#" + id
}

func projectPK(projectID string) string {
	return "PROJECT#" + projectID
}

func artifactPK(projectID, name string) string {
	return fmt.Sprintf("ARTIFACT#%s#%s", projectID, name)
}

func artifactSK(version int) string {
	return fmt.Sprintf("V#%08d", version)
}
