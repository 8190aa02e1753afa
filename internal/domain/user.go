package domain

// Authority levels known to the directory.
const (
	AuthoritySysAdmin     = "SYS_ADMIN"
	AuthorityTenantAdmin  = "TENANT_ADMIN"
	AuthorityCustomerUser = "CUSTOMER_USER"
)

// User is a directory entry that notifications can be addressed to.
type User struct {
	UserID     string `json:"id" dynamodbav:"user_id"`
	TenantID   string `json:"tenant_id" dynamodbav:"tenant_id"`
	CustomerID string `json:"customer_id,omitempty" dynamodbav:"customer_id"`
	Email      string `json:"email" dynamodbav:"email"`
	FirstName  string `json:"first_name" dynamodbav:"first_name"`
	LastName   string `json:"last_name" dynamodbav:"last_name"`
	Phone      string `json:"phone,omitempty" dynamodbav:"phone"`
	Authority  string `json:"authority" dynamodbav:"authority"`
}

// Title is the display name used for the recipientTitle template parameter:
// full name when known, email otherwise.
func (u *User) Title() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Customer groups users under a tenant.
type Customer struct {
	CustomerID string `json:"id" dynamodbav:"customer_id"`
	TenantID   string `json:"tenant_id" dynamodbav:"tenant_id"`
	Title      string `json:"title" dynamodbav:"title"`
}
