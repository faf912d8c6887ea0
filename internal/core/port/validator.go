package port

// QueryValidator validates SQL statements before execution.
// A non-nil error means the statement must not reach the database.
type QueryValidator interface {
	Validate(sql string) error
}
