package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/models"
	"github.com/sirupsen/logrus"
)

// UserRepository owns user identity records. Email and phone uniqueness is
// enforced with EMAIL#/PHONE# lookup items committed in the same transaction
// as the user item, so no two non-deleted users can share either.
type UserRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewUserRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func emailPK(email string) string {
	return "EMAIL#" + email
}

func phonePK(phone string) string {
	return "PHONE#" + phone
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal user for DynamoDB")
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: user.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: user.GetSK()}

	writes := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			},
		},
		{
			Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                r.lookupItem(emailPK(user.Email), user.ID),
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			},
		},
	}

	if user.PhoneNumber != "" {
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                r.lookupItem(phonePK(user.PhoneNumber), user.ID),
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			},
		})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})

	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return apperrors.ErrAlreadyExists
		}
		r.logger.WithError(err).Error("Failed to create user in DynamoDB")
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{ID: id}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if result.Item == nil {
		return nil, apperrors.ErrNotFound
	}

	var dbUser models.User
	if err := attributevalue.UnmarshalMap(result.Item, &dbUser); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal user from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &dbUser, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	id, err := r.resolveLookup(ctx, emailPK(email))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	id, err := r.resolveLookup(ctx, phonePK(phone))
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByEmailOrPhone returns the user owning either identifier, email first.
func (r *UserRepository) GetByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error) {
	user, err := r.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if phone == "" {
		return nil, apperrors.ErrNotFound
	}
	return r.GetByPhone(ctx, phone)
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	user := &models.User{ID: userID}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
		UpdateExpression:    aws.String("SET password_hash = :hash, updated_at = :updated_at"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hash":       &types.AttributeValueMemberS{Value: hash},
			":updated_at": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
	})

	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return apperrors.ErrNotFound
		}
		r.logger.WithError(err).Error("Failed to update password hash in DynamoDB")
		return fmt.Errorf("failed to update password hash: %w", err)
	}

	return nil
}

// MarkVerified flips the user to verified and records the billing customer
// reference. The condition makes it exactly-once: a user already verified is
// never re-verified and never gets a second customer reference.
func (r *UserRepository) MarkVerified(ctx context.Context, userID, customerID string) error {
	user := &models.User{ID: userID}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
		UpdateExpression:    aws.String("SET is_verified = :true, stripe_customer_id = :customer, updated_at = :updated_at"),
		ConditionExpression: aws.String("attribute_exists(PK) AND is_verified = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":       &types.AttributeValueMemberBOOL{Value: true},
			":false":      &types.AttributeValueMemberBOOL{Value: false},
			":customer":   &types.AttributeValueMemberS{Value: customerID},
			":updated_at": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
	})

	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return apperrors.ErrAlreadyExists
		}
		r.logger.WithError(err).Error("Failed to mark user verified in DynamoDB")
		return fmt.Errorf("failed to mark user verified: %w", err)
	}

	return nil
}

func (r *UserRepository) lookupItem(pk, userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: pk},
		"SK":      &types.AttributeValueMemberS{Value: "METADATA"},
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

func (r *UserRepository) resolveLookup(ctx context.Context, pk string) (string, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to resolve user lookup in DynamoDB")
		return "", fmt.Errorf("failed to resolve user lookup: %w", err)
	}

	if result.Item == nil {
		return "", apperrors.ErrNotFound
	}

	idAttr, ok := result.Item["user_id"].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("user lookup item missing user_id")
	}

	return idAttr.Value, nil
}
