package diff

import (
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
)

var backward = direction{
	name:         "rollback",
	side:         "new",
	scalarKey:    models.KeyOld,
	insertSuffix: models.SuffixDeleted,
	removeSuffix: models.SuffixAdded,
	insertOp:     models.OpRemove,
	removeOp:     models.OpAdd,
}

// Rollback applies a diff in reverse using the default engine
func Rollback(newValue models.JSONValue, d Result) (models.JSONValue, error) {
	return defaultEngine.Rollback(newValue, d)
}

// RollbackText parses a document and rolls a diff back from it using the
// default engine
func RollbackText(newText string, d Result) (models.JSONValue, error) {
	return defaultEngine.RollbackText(newText, d)
}

// Rollback reconstructs the old value from the new value and the diff between
// them. Keys marked __added are dropped, keys marked __deleted come back,
// "+" entries are removed and "-" entries re-inserted at their index.
func (e *Engine) Rollback(newValue models.JSONValue, d Result) (models.JSONValue, error) {
	return e.run(backward, newValue, d)
}

// RollbackText parses newText and rolls the diff back from it
func (e *Engine) RollbackText(newText string, d Result) (models.JSONValue, error) {
	newValue, err := parser.ParseString(newText)
	if err != nil {
		return nil, err
	}
	return e.Rollback(newValue, d)
}
