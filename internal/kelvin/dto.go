package kelvin

type Submit struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type Task struct {
	Name string `json:"name"`
}

// SubmitResponse is the body Kelvin returns for a created submit.
type SubmitResponse struct {
	Submit Submit `json:"submit"`
	Task   Task   `json:"task"`
}

type SubmissionRequest struct {
	AssignmentID string
	Token        string
	FileName     string
	Archive      []byte
}

// SubmissionResult describes an accepted submit. Message holds the raw body
// when the server answered with something other than SubmitResponse.
type SubmissionResult struct {
	ID       int64
	URL      string
	TaskName string
	Message  string
}
