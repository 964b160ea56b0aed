// README: Numeric identifiers shared by all entities.
package types

import "strconv"

// ID is a database-generated numeric identifier.
type ID int64

func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return ID(n), nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IDPtr returns nil for the zero ID.
func IDPtr(id ID) *ID {
	if id == 0 {
		return nil
	}
	return &id
}
