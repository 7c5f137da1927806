package routes

type NodeIDResponse struct {
	ID uint64 `json:"id"`
}
