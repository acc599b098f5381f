package model

// EndpointClass is a static category assigned to every route. It drives both
// the permission evaluator and the per-class rate ceilings. The classification
// table is built at router setup and never changes at runtime.
type EndpointClass string

const (
	ClassPublic EndpointClass = "public"
	ClassRead   EndpointClass = "read"
	ClassWrite  EndpointClass = "write"
	ClassAdmin  EndpointClass = "admin"
	ClassDelete EndpointClass = "delete"
)

// Classes lists every endpoint class, in rate-limit table order.
var Classes = []EndpointClass{ClassPublic, ClassRead, ClassWrite, ClassAdmin, ClassDelete}

// Operation is the concrete action a request performs within its class.
// Write-class routes split into create (POST) and update (PUT/PATCH) so that
// API key permissions can be checked per flag.
type Operation string

const (
	OpNone   Operation = ""
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpAdmin  Operation = "admin"
)

// OperationFor maps an endpoint class and HTTP method to the operation the
// permission evaluator checks.
func OperationFor(class EndpointClass, method string) Operation {
	switch class {
	case ClassPublic:
		return OpNone
	case ClassRead:
		return OpRead
	case ClassWrite:
		if method == "PUT" || method == "PATCH" {
			return OpUpdate
		}
		return OpCreate
	case ClassDelete:
		return OpDelete
	case ClassAdmin:
		return OpAdmin
	}
	return OpNone
}
