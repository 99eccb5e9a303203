package mysql

import (
	"fmt"

	"github.com/VividCortex/mysqlerr"
	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/go-sql-driver/mysql"
)

type notFoundError struct {
	ID           string
	ResourceType string
}

func notFound(kind string) *notFoundError {
	return &notFoundError{
		ResourceType: kind,
	}
}

func (e *notFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s was not found in the datastore", e.ResourceType, e.ID)
	}
	return fmt.Sprintf("%s was not found in the datastore", e.ResourceType)
}

func (e *notFoundError) WithID(id string) error {
	e.ID = id
	return e
}

func (e *notFoundError) IsNotFound() bool {
	return true
}

type existsError struct {
	Identifier   interface{}
	ResourceType string
}

func alreadyExists(kind string, identifier interface{}) error {
	return &existsError{
		Identifier:   identifier,
		ResourceType: kind,
	}
}

func (e *existsError) Error() string {
	return fmt.Sprintf("%s %v already exists", e.ResourceType, e.Identifier)
}

func (e *existsError) IsExists() bool {
	return true
}

func isDuplicate(err error) bool {
	err = ctxerr.Cause(err)
	if driverErr, ok := err.(*mysql.MySQLError); ok {
		if driverErr.Number == mysqlerr.ER_DUP_ENTRY {
			return true
		}
	}
	return false
}
