package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/caresync/caresync/internal/apperrors"
	"github.com/caresync/caresync/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentRepository owns payment ledger entries and saved cards, both stored
// in the owning user's partition. The writes of one charge attempt (ledger
// entry, card reconciliation, subscription flip) commit atomically or not at
// all.
type PaymentRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewPaymentRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *PaymentRepository {
	return &PaymentRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// CommitAttempt persists everything a single charge attempt changed locally
// in one transaction: the append-only payment record, an optional saved-card
// insert or delete, and the subscription flip when the charge succeeded.
func (r *PaymentRepository) CommitAttempt(ctx context.Context, payment *models.Payment, saveCard *models.SavedCard, deleteCardID string, markSubscribed bool) error {
	paymentItem, err := attributevalue.MarshalMap(payment)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal payment for DynamoDB")
		return fmt.Errorf("failed to marshal payment: %w", err)
	}
	paymentItem["PK"] = &types.AttributeValueMemberS{Value: payment.GetPK()}
	paymentItem["SK"] = &types.AttributeValueMemberS{Value: payment.GetSK()}

	writes := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                paymentItem,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			},
		},
	}

	if saveCard != nil {
		cardItem, err := attributevalue.MarshalMap(saveCard)
		if err != nil {
			r.logger.WithError(err).Error("Failed to marshal saved card for DynamoDB")
			return fmt.Errorf("failed to marshal saved card: %w", err)
		}
		cardItem["PK"] = &types.AttributeValueMemberS{Value: saveCard.GetPK()}
		cardItem["SK"] = &types.AttributeValueMemberS{Value: saveCard.GetSK()}

		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(r.tableName),
				Item:      cardItem,
			},
		})
	}

	if deleteCardID != "" {
		card := &models.SavedCard{UserID: payment.UserID, StripePaymentMethodID: deleteCardID}
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: card.GetPK()},
					"SK": &types.AttributeValueMemberS{Value: card.GetSK()},
				},
			},
		})
	}

	if markSubscribed {
		user := &models.User{ID: payment.UserID}
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName: aws.String(r.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
					"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
				},
				UpdateExpression:    aws.String("SET is_subscribed = :true, #plan = :plan, updated_at = :updated_at"),
				ConditionExpression: aws.String("attribute_exists(PK)"),
				ExpressionAttributeNames: map[string]string{
					"#plan": "plan",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":true":       &types.AttributeValueMemberBOOL{Value: true},
					":plan":       &types.AttributeValueMemberS{Value: payment.Plan},
					":updated_at": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
				},
			},
		})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to commit payment attempt in DynamoDB")
		return fmt.Errorf("%w: %v", apperrors.ErrTransactionAborted, err)
	}

	return nil
}

func (r *PaymentRepository) ListPayments(ctx context.Context, userID string) ([]models.Payment, error) {
	items, err := r.queryPrefix(ctx, userID, "PAYMENT#")
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}

	var payments []models.Payment
	if err := attributevalue.UnmarshalListOfMaps(items, &payments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payments: %w", err)
	}

	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})

	return payments, nil
}

func (r *PaymentRepository) GetPayment(ctx context.Context, userID, paymentID string) (*models.Payment, error) {
	payment := &models.Payment{ID: paymentID, UserID: userID}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: payment.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: payment.GetSK()},
		},
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to get payment from DynamoDB")
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if result.Item == nil {
		return nil, apperrors.ErrNotFound
	}

	var dbPayment models.Payment
	if err := attributevalue.UnmarshalMap(result.Item, &dbPayment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}

	return &dbPayment, nil
}

func (r *PaymentRepository) ListSavedCards(ctx context.Context, userID string) ([]models.SavedCard, error) {
	items, err := r.queryPrefix(ctx, userID, "CARD#")
	if err != nil {
		return nil, fmt.Errorf("failed to query saved cards: %w", err)
	}

	var cards []models.SavedCard
	if err := attributevalue.UnmarshalListOfMaps(items, &cards); err != nil {
		return nil, fmt.Errorf("failed to unmarshal saved cards: %w", err)
	}

	return cards, nil
}

func (r *PaymentRepository) GetSavedCard(ctx context.Context, userID, paymentMethodID string) (*models.SavedCard, error) {
	card := &models.SavedCard{UserID: userID, StripePaymentMethodID: paymentMethodID}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: card.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: card.GetSK()},
		},
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to get saved card from DynamoDB")
		return nil, fmt.Errorf("failed to get saved card: %w", err)
	}

	if result.Item == nil {
		return nil, apperrors.ErrNotFound
	}

	var dbCard models.SavedCard
	if err := attributevalue.UnmarshalMap(result.Item, &dbCard); err != nil {
		return nil, fmt.Errorf("failed to unmarshal saved card: %w", err)
	}

	return &dbCard, nil
}

func (r *PaymentRepository) DeleteSavedCard(ctx context.Context, userID, paymentMethodID string) error {
	card := &models.SavedCard{UserID: userID, StripePaymentMethodID: paymentMethodID}

	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: card.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: card.GetSK()},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})

	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return apperrors.ErrNotFound
		}
		r.logger.WithError(err).Error("Failed to delete saved card from DynamoDB")
		return fmt.Errorf("failed to delete saved card: %w", err)
	}

	return nil
}

func (r *PaymentRepository) queryPrefix(ctx context.Context, userID, prefix string) ([]map[string]types.AttributeValue, error) {
	user := &models.User{ID: userID}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: user.GetPK()},
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to query DynamoDB partition")
		return nil, err
	}

	return result.Items, nil
}
