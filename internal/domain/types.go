package domain

import "time"

type Intent string

const (
	IntentDeliveryStatus   Intent = "DELIVERY_STATUS"
	IntentDeliveryProblem  Intent = "DELIVERY_PROBLEM"
	IntentVehicleDefect    Intent = "VEHICLE_DEFECT"
	IntentMissingItem      Intent = "MISSING_ITEM"
	IntentRefundRequest    Intent = "REFUND_REQUEST"
	IntentWarrantyQuestion Intent = "WARRANTY_QUESTION"
	IntentWarrantyClaim    Intent = "WARRANTY_CLAIM"
	IntentFinanceIssue     Intent = "FINANCE_ISSUE"
	IntentAdminIssue       Intent = "ADMIN_ISSUE"
	IntentSpeakToHuman     Intent = "SPEAK_TO_HUMAN"
	IntentGreeting         Intent = "GREETING"
	IntentGeneralQuestion  Intent = "GENERAL_QUESTION"
	IntentOther            Intent = "OTHER"
)

var intentCategories = map[Intent]ComplaintCategory{
	IntentDeliveryStatus:   CategoryDelivery,
	IntentDeliveryProblem:  CategoryDelivery,
	IntentVehicleDefect:    CategoryVehicleCondition,
	IntentMissingItem:      CategoryMissingItems,
	IntentRefundRequest:    CategoryMissingItems,
	IntentWarrantyQuestion: CategoryWarranty,
	IntentWarrantyClaim:    CategoryWarranty,
	IntentFinanceIssue:     CategoryAdminFinance,
	IntentAdminIssue:       CategoryAdminFinance,
	IntentSpeakToHuman:     CategoryCommunication,
	IntentGreeting:         CategoryOther,
	IntentGeneralQuestion:  CategoryOther,
	IntentOther:            CategoryOther,
}

// Valid reports whether the intent is one of the thirteen known intents.
func (i Intent) Valid() bool {
	_, ok := intentCategories[i]
	return ok
}

// IntentCategory maps a classified intent to the complaint category recorded
// when an action is taken on its behalf.
func IntentCategory(intent Intent) ComplaintCategory {
	if category, ok := intentCategories[intent]; ok {
		return category
	}
	return CategoryOther
}

type ComplaintCategory string

const (
	CategoryDelivery         ComplaintCategory = "DELIVERY"
	CategoryVehicleCondition ComplaintCategory = "VEHICLE_CONDITION"
	CategoryMissingItems     ComplaintCategory = "MISSING_ITEMS"
	CategoryAdminFinance     ComplaintCategory = "ADMIN_FINANCE"
	CategoryWarranty         ComplaintCategory = "WARRANTY"
	CategoryCommunication    ComplaintCategory = "COMMUNICATION"
	CategoryOther            ComplaintCategory = "OTHER"
)

type ComplaintStatus string

const (
	ComplaintOpen             ComplaintStatus = "OPEN"
	ComplaintInProgress       ComplaintStatus = "IN_PROGRESS"
	ComplaintAwaitingCustomer ComplaintStatus = "AWAITING_CUSTOMER"
	ComplaintAwaitingInternal ComplaintStatus = "AWAITING_INTERNAL"
	ComplaintEscalated        ComplaintStatus = "ESCALATED"
	ComplaintResolved         ComplaintStatus = "RESOLVED"
	ComplaintClosed           ComplaintStatus = "CLOSED"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryPreparing DeliveryStatus = "PREPARING"
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

type WarrantyType string

const (
	WarrantyStandard90   WarrantyType = "STANDARD_90"
	WarrantyCarsaCover12 WarrantyType = "CARSA_COVER_12"
	WarrantyCarsaCover24 WarrantyType = "CARSA_COVER_24"
	WarrantyCarsaCover48 WarrantyType = "CARSA_COVER_48"
)

type ActionType string

const (
	ActionRefund           ActionType = "REFUND"
	ActionCompensation     ActionType = "COMPENSATION"
	ActionReship           ActionType = "RESHIP"
	ActionCreateTicket     ActionType = "CREATE_TICKET"
	ActionScheduleCallback ActionType = "SCHEDULE_CALLBACK"
	ActionEscalate         ActionType = "ESCALATE"
)

type ActionStatus string

const (
	ActionPending   ActionStatus = "PENDING"
	ActionApproved  ActionStatus = "APPROVED"
	ActionExecuted  ActionStatus = "EXECUTED"
	ActionFailed    ActionStatus = "FAILED"
	ActionCancelled ActionStatus = "CANCELLED"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
)

const (
	ChannelWebchat    = "WEBCHAT"
	ChannelSimulation = "SIMULATION"

	ConversationActive = "ACTIVE"

	AuthorizedByAI = "AI"
)

type Customer struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	IsVulnerable bool
	Orders       []Order
	CreatedAt    time.Time
}

type Order struct {
	ID                   string
	CustomerID           string
	OrderNumber          string
	VehicleReg           string
	VehicleMake          string
	VehicleModel         string
	VehicleYear          int
	PurchaseDate         time.Time
	PurchasePrice        float64
	DeliveryStatus       DeliveryStatus
	DeliveryDate         *time.Time
	DeliveryAddress      string
	WarrantyType         WarrantyType
	WarrantyExpiry       time.Time
	Accessories          []string
	AccessoriesDelivered bool
}

// CustomerContext is a resolved customer identity together with its orders
// and the number of complaints raised in the lookback window.
type CustomerContext struct {
	Customer
	PreviousComplaints int
}

// PrimaryOrder returns the order used to ground replies, if any.
func (c *CustomerContext) PrimaryOrder() *Order {
	if c == nil || len(c.Orders) == 0 {
		return nil
	}
	return &c.Orders[0]
}

type Conversation struct {
	ID         string
	CustomerID string
	Channel    string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Intent         Intent
	Confidence     *float64
	Sentiment      *float64
	LatencyMS      *int64
	ActionTaken    ActionType
	CreatedAt      time.Time
}

type Complaint struct {
	ID              string
	ReferenceNumber string
	CustomerID      string
	OrderID         string
	Category        ComplaintCategory
	Priority        Priority
	Status          ComplaintStatus
	EscalatedReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ComplaintAction struct {
	ID           string
	ComplaintID  string
	ActionType   ActionType
	Status       ActionStatus
	Amount       *float64
	Description  string
	AuthorizedBy string
	ExecutedAt   *time.Time
	CreatedAt    time.Time
}
