package action

import "encoding/json"

// jsonPayload is the default DispatchSpec.Payload: marshal the leaf result
// as-is.
func jsonPayload(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

// rowsAffected is the modifyTableData leaf result. It
// implements noopResult so WithDispatch skips the event when filter matched
// nothing to change.
type rowsAffected struct {
	RowsAffected int64 `json:"rows_affected"`
}

func (r rowsAffected) DispatchNoop() bool { return r.RowsAffected == 0 }

// rowsRemoved is the removeTableData leaf result, mirroring rowsAffected.
type rowsRemoved struct {
	RowsRemoved int64 `json:"rows_removed"`
}

func (r rowsRemoved) DispatchNoop() bool { return r.RowsRemoved == 0 }
