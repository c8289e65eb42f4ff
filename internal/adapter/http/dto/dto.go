package dto

// InitializeDepositRequest is the request body for opening a gateway
// checkout session.
type InitializeDepositRequest struct {
	StudentID     string `json:"student_id" binding:"required,max=64"`
	Email         string `json:"email" binding:"required,email"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Currency      string `json:"currency" binding:"omitempty,len=3"`
	Purpose       string `json:"purpose" binding:"omitempty,oneof=wallet_deposit fee_payment"`
	AcademicYear  string `json:"academic_year,omitempty"`
	Semester      string `json:"semester,omitempty"`
	PaymentPeriod string `json:"payment_period,omitempty"`
}

// InitializeDepositResponse carries the checkout handle back to the client.
type InitializeDepositResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// FeeChargeRequest is the request body for an internal fee deduction.
type FeeChargeRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Description   string `json:"description" binding:"required,max=255"`
	AcademicYear  string `json:"academic_year" binding:"required"`
	Semester      string `json:"semester" binding:"required"`
	PaymentPeriod string `json:"payment_period,omitempty"`
}

// TransactionResponse is the wire form of a ledger entry.
type TransactionResponse struct {
	ID            string `json:"id"`
	StudentID     string `json:"student_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	Source        string `json:"source"`
	AcademicYear  string `json:"academic_year,omitempty"`
	Semester      string `json:"semester,omitempty"`
	PaymentPeriod string `json:"payment_period,omitempty"`
	Description   string `json:"description,omitempty"`
	Reason        string `json:"reason,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// ApplyResultResponse is the wire form of an apply outcome.
type ApplyResultResponse struct {
	Transaction   TransactionResponse `json:"transaction"`
	WalletBalance int64               `json:"wallet_balance"`
	Replayed      bool                `json:"replayed"`
}

// WalletResponse is the wire form of a wallet.
type WalletResponse struct {
	StudentID          string  `json:"student_id"`
	Balance            int64   `json:"balance"`
	Currency           string  `json:"currency"`
	Status             string  `json:"status"`
	LastTransactionRef *string `json:"last_transaction_ref,omitempty"`
	UpdatedAt          string  `json:"updated_at"`
}

// TransactionListResponse is a paginated slice of the ledger.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
}
