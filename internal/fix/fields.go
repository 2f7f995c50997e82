package fix

// SOH is the field delimiter. It never appears inside a field value.
const SOH byte = 0x01

// TimestampFormat is the FIX UTC timestamp layout (tags 52, 60)
const TimestampFormat = "20060102-15:04:05.000"

// --- Message Types ---
const (
	// Admin messages
	MsgTypeHeartbeat   = "0" // Heartbeat
	MsgTypeTestRequest = "1" // Test Request
	MsgTypeLogout      = "5" // Logout
	MsgTypeLogon       = "A" // Logon

	// Order entry messages
	MsgTypeExecutionReport    = "8" // Execution Report
	MsgTypeOrderCancelReject  = "9" // Order Cancel Reject
	MsgTypeNewOrderSingle     = "D" // New Order Single
	MsgTypeOrderCancelRequest = "F" // Order Cancel Request
	MsgTypeOrderCancelReplace = "G" // Order Cancel/Replace Request
	MsgTypeOrderStatusRequest = "H" // Order Status Request
)

// --- Field Tags ---
const (
	TagBeginString   = 8   // BeginString
	TagBodyLength    = 9   // BodyLength
	TagCheckSum      = 10  // CheckSum
	TagClOrdID       = 11  // ClOrdID
	TagCumQty        = 14  // CumQty
	TagExecID        = 17  // ExecID
	TagLastPx        = 31  // LastPx
	TagLastQty       = 32  // LastQty
	TagMsgSeqNum     = 34  // MsgSeqNum
	TagMsgType       = 35  // MsgType
	TagOrderID       = 37  // OrderID
	TagOrderQty      = 38  // OrderQty
	TagOrdStatus     = 39  // OrdStatus
	TagOrdType       = 40  // OrdType
	TagOrigClOrdID   = 41  // OrigClOrdID
	TagPrice         = 44  // Price
	TagSenderCompID  = 49  // SenderCompID
	TagSendingTime   = 52  // SendingTime
	TagSide          = 54  // Side
	TagSymbol        = 55  // Symbol
	TagTargetCompID  = 56  // TargetCompID
	TagText          = 58  // Text
	TagTimeInForce   = 59  // TimeInForce
	TagTransactTime  = 60  // TransactTime
	TagEncryptMethod = 98  // EncryptMethod
	TagHeartBtInt    = 108 // HeartBtInt
	TagTestReqID     = 112 // TestReqID
	TagExecType      = 150 // ExecType
	TagLeavesQty     = 151 // LeavesQty
)

// Side holds the wire value of tag 54
type Side string

const (
	SideBuy  Side = "1"
	SideSell Side = "2"
)

// OrdType holds the wire value of tag 40
type OrdType string

const (
	OrdTypeMarket OrdType = "1"
	OrdTypeLimit  OrdType = "2"
)

// TimeInForce holds the wire value of tag 59
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "0" // DAY
	TimeInForceGTC TimeInForce = "1" // GOOD_TILL_CANCEL
	TimeInForceIOC TimeInForce = "3" // IMMEDIATE_OR_CANCEL
)

// ExecType holds the wire value of tag 150
type ExecType string

const (
	ExecTypeNew         ExecType = "0"
	ExecTypePartialFill ExecType = "1"
	ExecTypeFill        ExecType = "2"
	ExecTypeCanceled    ExecType = "4"
	ExecTypeReplaced    ExecType = "5"
	ExecTypeRejected    ExecType = "8"
	ExecTypeOrderStatus ExecType = "I"
)

// OrdStatus holds the wire value of tag 39
type OrdStatus string

const (
	OrdStatusNew             OrdStatus = "0"
	OrdStatusPartiallyFilled OrdStatus = "1"
	OrdStatusFilled          OrdStatus = "2"
	OrdStatusCanceled        OrdStatus = "4"
	OrdStatusPendingCancel   OrdStatus = "6"
	OrdStatusRejected        OrdStatus = "8"
	OrdStatusPendingNew      OrdStatus = "A"
)

// --- Protocol Constants ---
const (
	EncryptMethodNone = "0"
)
