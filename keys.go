package pricecheck

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// syncKeySeparator joins the components of a product SyncKey.
const syncKeySeparator = "_"

// BuildSyncKey derives the deterministic identifier of a product from its
// scope, hierarchy path and product code:
//
//	Products_<Assortment>_<Customer>_<Area>_<Division>_<Family>_<Category>_<ProductGroup>_<code>
//
// Pending levels contribute their placeholder, so a reclassified product
// gets a new key.
func BuildSyncKey(scope Scope, path Path, code string) string {
	keys := path.Encoded()
	parts := make([]string, 0, 3+NumLevels+1)
	parts = append(parts, string(EntityProducts), scope.Assortment, scope.Customer)
	parts = append(parts, keys[:]...)
	parts = append(parts, code)
	return strings.Join(parts, syncKeySeparator)
}

// CodeFromSyncKey returns the product code segment of a SyncKey, or "" if
// the key has no separator.
func CodeFromSyncKey(key string) string {
	i := strings.LastIndex(key, syncKeySeparator)
	if i < 0 {
		return ""
	}
	return key[i+1:]
}

// CodeGenerator produces candidate product codes for new products.
type CodeGenerator interface {
	NextCode() string
}

// CodeGeneratorFunc adapts a function to CodeGenerator.
type CodeGeneratorFunc func() string

func (f CodeGeneratorFunc) NextCode() string { return f() }

// SessionCodeGenerator produces codes of the form
// SCAN<unix-ms><random 0..99999><sequence>. Codes are unique within a
// session on a best-effort basis; collisions are resolved by retrying.
type SessionCodeGenerator struct {
	mu  sync.Mutex
	seq int
	rnd *rand.Rand
	now func() time.Time
}

// NewSessionCodeGenerator returns a generator with its own sequence.
func NewSessionCodeGenerator() *SessionCodeGenerator {
	return &SessionCodeGenerator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// NextCode returns the next candidate code.
func (g *SessionCodeGenerator) NextCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("SCAN%d%d%d", g.now().UnixMilli(), g.rnd.Intn(100000), g.seq)
}

// ValidateEAN checks the 13-digit numeric barcode invariant.
func ValidateEAN(code string) error {
	invalid := len(code) != 13
	for _, c := range code {
		if c < '0' || c > '9' {
			invalid = true
		}
	}
	if invalid {
		return &ValidationError{Field: FieldEAN, Message: fmt.Sprintf("%q is not 13 numeric digits", code), Err: ErrInvalidEAN}
	}
	return nil
}

// PadCustomer left-pads a customer number with zeros to the backend's
// fixed width. An empty customer stays empty.
func PadCustomer(customer string) string {
	if customer == "" || len(customer) >= customerNumberSize {
		return customer
	}
	return strings.Repeat("0", customerNumberSize-len(customer)) + customer
}
