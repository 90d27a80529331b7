package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "carsa.local/complaints/internal/db"
	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/ids"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(driver, dsn string, log logrus.FieldLogger) (*GormStore, error) {
	gormDB, err := dbpkg.OpenGorm(driver, dsn, log)
	if err != nil {
		return nil, fmt.Errorf("open gorm store: %w", err)
	}

	store := &GormStore{db: gormDB}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *GormStore) migrate() error {
	return s.db.AutoMigrate(
		&customerRow{},
		&orderRow{},
		&conversationRow{},
		&messageRow{},
		&complaintRow{},
		&complaintActionRow{},
		&simulationRunRow{},
		&simulationRow{},
		&simulationMessageRow{},
	)
}

func (s *GormStore) SaveCustomer(ctx context.Context, customer domain.Customer) error {
	if strings.TrimSpace(customer.ID) == "" {
		return fmt.Errorf("customer id is required")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := customerRow{
			ID:           customer.ID,
			Name:         customer.Name,
			Email:        normalizeEmail(customer.Email),
			Phone:        customer.Phone,
			IsVulnerable: customer.IsVulnerable,
			CreatedAt:    customer.CreatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("save customer: %w", err)
		}
		if err := tx.Where("customer_id = ?", customer.ID).Delete(&orderRow{}).Error; err != nil {
			return fmt.Errorf("replace orders: %w", err)
		}
		for _, order := range cloneOrders(customer.Orders, customer.ID) {
			orow := orderRowFromRecord(order)
			if err := tx.Create(&orow).Error; err != nil {
				return fmt.Errorf("create order %s: %w", order.OrderNumber, err)
			}
		}
		return nil
	})
}

func (s *GormStore) FindByEmail(ctx context.Context, email string, since time.Time) (domain.CustomerContext, error) {
	var row customerRow
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&row).Error
	if err != nil {
		return domain.CustomerContext{}, notFound(err, "find customer by email")
	}
	return s.customerContext(ctx, row, "", since)
}

func (s *GormStore) FindByOrderNumber(ctx context.Context, orderNumber string, since time.Time) (domain.CustomerContext, error) {
	return s.findByOrder(ctx, "order_number = ?", normalizeOrderNumber(orderNumber), since)
}

func (s *GormStore) FindByVehicleReg(ctx context.Context, reg string, since time.Time) (domain.CustomerContext, error) {
	return s.findByOrder(ctx, "vehicle_reg = ?", NormalizeReg(reg), since)
}

func (s *GormStore) FindByID(ctx context.Context, customerID string, since time.Time) (domain.CustomerContext, error) {
	var row customerRow
	if err := s.db.WithContext(ctx).Where("id = ?", customerID).Take(&row).Error; err != nil {
		return domain.CustomerContext{}, notFound(err, "find customer by id")
	}
	return s.customerContext(ctx, row, "", since)
}

func (s *GormStore) findByOrder(ctx context.Context, where, value string, since time.Time) (domain.CustomerContext, error) {
	var order orderRow
	if err := s.db.WithContext(ctx).Where(where, value).Take(&order).Error; err != nil {
		return domain.CustomerContext{}, notFound(err, "find order")
	}
	var row customerRow
	if err := s.db.WithContext(ctx).Where("id = ?", order.CustomerID).Take(&row).Error; err != nil {
		return domain.CustomerContext{}, notFound(err, "find order customer")
	}
	return s.customerContext(ctx, row, order.ID, since)
}

func (s *GormStore) customerContext(ctx context.Context, row customerRow, matchedOrderID string, since time.Time) (domain.CustomerContext, error) {
	var orders []orderRow
	if err := s.db.WithContext(ctx).
		Where("customer_id = ?", row.ID).
		Order("purchase_date DESC").
		Find(&orders).Error; err != nil {
		return domain.CustomerContext{}, fmt.Errorf("load orders: %w", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&complaintRow{}).
		Where("customer_id = ? AND created_at >= ?", row.ID, since).
		Count(&count).Error; err != nil {
		return domain.CustomerContext{}, fmt.Errorf("count complaints: %w", err)
	}

	customer := row.toRecord(orders)
	matched := -1
	for i, order := range customer.Orders {
		if order.ID == matchedOrderID {
			matched = i
			break
		}
	}
	customer.Orders = orderedOrders(customer.Orders, matched)
	return domain.CustomerContext{Customer: customer, PreviousComplaints: int(count)}, nil
}

func (s *GormStore) CreateConversation(ctx context.Context, conv domain.Conversation) (domain.Conversation, error) {
	if conv.ID == "" {
		conv.ID = ids.New()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now

	row := conversationRow{
		ID:         conv.ID,
		CustomerID: conv.CustomerID,
		Channel:    conv.Channel,
		Status:     conv.Status,
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	var row conversationRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return domain.Conversation{}, notFound(err, "get conversation")
	}
	return row.toRecord(), nil
}

func (s *GormStore) SetConversationCustomer(ctx context.Context, id, customerID string) error {
	res := s.db.WithContext(ctx).Model(&conversationRow{}).Where("id = ?", id).Updates(map[string]any{
		"customer_id": customerID,
		"updated_at":  time.Now().UTC(),
	})
	return affected(res, "set conversation customer")
}

func (s *GormStore) AppendMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := validateMessage(msg); err != nil {
		return domain.Message{}, err
	}
	if msg.ID == "" {
		msg.ID = ids.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&conversationRow{}).Where("id = ?", msg.ConversationID).Count(&exists).Error; err != nil {
			return fmt.Errorf("conversation lookup: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}

		var maxSeq int64
		if err := tx.Model(&messageRow{}).
			Where("conversation_id = ?", msg.ConversationID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("sequence lookup: %w", err)
		}

		row := messageRow{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Sequence:       maxSeq + 1,
			Role:           string(msg.Role),
			Content:        msg.Content,
			Intent:         string(msg.Intent),
			Confidence:     msg.Confidence,
			Sentiment:      msg.Sentiment,
			LatencyMS:      msg.LatencyMS,
			ActionTaken:    string(msg.ActionTaken),
			CreatedAt:      msg.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *GormStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	query := s.db.WithContext(ctx).
		Model(&messageRow{}).
		Where("conversation_id = ?", conversationID).
		Order("sequence DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []messageRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	out := make([]domain.Message, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row.toRecord()
	}
	return out, nil
}

func (s *GormStore) CreateComplaint(ctx context.Context, complaint domain.Complaint) (domain.Complaint, error) {
	if strings.TrimSpace(complaint.CustomerID) == "" {
		return domain.Complaint{}, fmt.Errorf("complaint customer id is required")
	}
	now := time.Now().UTC()
	if complaint.ID == "" {
		complaint.ID = ids.New()
	}
	if complaint.ReferenceNumber == "" {
		complaint.ReferenceNumber = ids.ComplaintReference(now)
	}
	if complaint.Status == "" {
		complaint.Status = domain.ComplaintOpen
	}
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = now
	}
	complaint.UpdatedAt = now

	row := complaintRow{
		ID:              complaint.ID,
		ReferenceNumber: complaint.ReferenceNumber,
		CustomerID:      complaint.CustomerID,
		OrderID:         complaint.OrderID,
		Category:        string(complaint.Category),
		Priority:        string(complaint.Priority),
		Status:          string(complaint.Status),
		EscalatedReason: complaint.EscalatedReason,
		CreatedAt:       complaint.CreatedAt,
		UpdatedAt:       complaint.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Complaint{}, fmt.Errorf("create complaint: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) GetComplaint(ctx context.Context, id string) (domain.Complaint, error) {
	var row complaintRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return domain.Complaint{}, notFound(err, "get complaint")
	}
	return row.toRecord(), nil
}

func (s *GormStore) EscalateComplaint(ctx context.Context, id, reason string) error {
	res := s.db.WithContext(ctx).Model(&complaintRow{}).Where("id = ?", id).Updates(map[string]any{
		"status":           string(domain.ComplaintEscalated),
		"escalated_reason": reason,
		"updated_at":       time.Now().UTC(),
	})
	return affected(res, "escalate complaint")
}

func (s *GormStore) CreateComplaintAction(ctx context.Context, action domain.ComplaintAction) (domain.ComplaintAction, error) {
	if action.ID == "" {
		action.ID = ids.New()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&complaintRow{}).Where("id = ?", action.ComplaintID).Count(&exists).Error; err != nil {
		return domain.ComplaintAction{}, fmt.Errorf("complaint lookup: %w", err)
	}
	if exists == 0 {
		return domain.ComplaintAction{}, ErrNotFound
	}

	row := complaintActionRow{
		ID:           action.ID,
		ComplaintID:  action.ComplaintID,
		ActionType:   string(action.ActionType),
		Status:       string(action.Status),
		Amount:       action.Amount,
		Description:  action.Description,
		AuthorizedBy: action.AuthorizedBy,
		ExecutedAt:   action.ExecutedAt,
		CreatedAt:    action.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.ComplaintAction{}, fmt.Errorf("create complaint action: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) ListComplaintActions(ctx context.Context, complaintID string) ([]domain.ComplaintAction, error) {
	var rows []complaintActionRow
	if err := s.db.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list complaint actions: %w", err)
	}
	out := make([]domain.ComplaintAction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (s *GormStore) CreateRun(ctx context.Context, run domain.SimulationRun) (domain.SimulationRun, error) {
	if run.ID == "" {
		run.ID = ids.New()
	}
	if run.Status == "" {
		run.Status = domain.RunPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	row := simulationRunRowFromRecord(run)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.SimulationRun{}, fmt.Errorf("create run: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) UpdateRun(ctx context.Context, run domain.SimulationRun) error {
	existing, err := s.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	run.CreatedAt = existing.CreatedAt
	row := simulationRunRowFromRecord(run)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *GormStore) GetRun(ctx context.Context, id string) (domain.SimulationRun, error) {
	var row simulationRunRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return domain.SimulationRun{}, notFound(err, "get run")
	}
	return row.toRecord(), nil
}

func (s *GormStore) ListRuns(ctx context.Context, filter RunFilter) ([]domain.SimulationRun, error) {
	query := s.db.WithContext(ctx).Model(&simulationRunRow{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.CompletedSince != nil {
		query = query.Where("completed_at >= ?", *filter.CompletedSince)
	}
	switch filter.Order {
	case OrderCompletedAsc:
		query = query.Order("completed_at ASC")
	case OrderCompletedDesc:
		query = query.Order("completed_at DESC")
	default:
		query = query.Order("created_at ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []simulationRunRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]domain.SimulationRun, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (s *GormStore) IncrementRunCompleted(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&simulationRunRow{}).
		Where("id = ?", id).
		UpdateColumn("completed_count", gorm.Expr("completed_count + ?", 1))
	return affected(res, "increment run completed")
}

func (s *GormStore) CreateSimulation(ctx context.Context, rec domain.SimulationRecord) (domain.SimulationRecord, error) {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	if rec.Status == "" {
		rec.Status = domain.SimulationRunning
	}
	row := simulationRowFromRecord(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.SimulationRecord{}, fmt.Errorf("create simulation: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) UpdateSimulation(ctx context.Context, rec domain.SimulationRecord) error {
	existing, err := s.GetSimulation(ctx, rec.ID)
	if err != nil {
		return err
	}
	rec.CreatedAt = existing.CreatedAt
	row := simulationRowFromRecord(rec)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("update simulation: %w", err)
	}
	return nil
}

func (s *GormStore) GetSimulation(ctx context.Context, id string) (domain.SimulationRecord, error) {
	var row simulationRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return domain.SimulationRecord{}, notFound(err, "get simulation")
	}
	return row.toRecord(), nil
}

func (s *GormStore) ListSimulations(ctx context.Context, filter SimulationFilter) ([]domain.SimulationRecord, error) {
	query := s.db.WithContext(ctx).Model(&simulationRow{}).Order("created_at ASC")
	if filter.RunID != "" {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		query = query.Where("status IN ?", statuses)
	}

	var rows []simulationRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	out := make([]domain.SimulationRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (s *GormStore) AppendSimulationMessage(ctx context.Context, msg domain.SimulationMessage) (domain.SimulationMessage, error) {
	if msg.ID == "" {
		msg.ID = ids.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&simulationRow{}).Where("id = ?", msg.SimulationID).Count(&exists).Error; err != nil {
			return fmt.Errorf("simulation lookup: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}

		var maxSeq int64
		if err := tx.Model(&simulationMessageRow{}).
			Where("simulation_id = ?", msg.SimulationID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("sequence lookup: %w", err)
		}

		row := simulationMessageRow{
			ID:              msg.ID,
			SimulationID:    msg.SimulationID,
			Sequence:        maxSeq + 1,
			Role:            string(msg.Role),
			Content:         msg.Content,
			PersonaIntent:   msg.PersonaIntent,
			EmotionLevel:    msg.EmotionLevel,
			Intent:          string(msg.Intent),
			Confidence:      msg.Confidence,
			ResponseLatency: msg.ResponseLatency,
			ActionTaken:     string(msg.ActionTaken),
			CreatedAt:       msg.CreatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create simulation message: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.SimulationMessage{}, err
	}
	return msg, nil
}

func (s *GormStore) ListSimulationMessages(ctx context.Context, simulationID string) ([]domain.SimulationMessage, error) {
	var rows []simulationMessageRow
	if err := s.db.WithContext(ctx).
		Where("simulation_id = ?", simulationID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list simulation messages: %w", err)
	}
	out := make([]domain.SimulationMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affected(res *gorm.DB, op string) error {
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
