package db

import "fmt"

// ConnectionError is returned when the database cannot be reached or rejects
// the credentials.
type ConnectionError struct {
	Host   string
	DBName string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to db %s on %s: %s", e.DBName, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
