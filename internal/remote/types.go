package remote

import (
	"encoding/json"

	"github.com/fentz26/easyclaim/internal/models"
)

// envelope is the wrapper every endpoint responds with.
type envelope struct {
	Errno  *int            `json:"errno"`
	Errmsg string          `json:"errmsg"`
	Data   json.RawMessage `json:"data"`
}

func (e *envelope) hasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

type userInfoData struct {
	RoleLinks []string `json:"roleLinks"`
	RoleNames []string `json:"roleNames"`
	UserName  string   `json:"userName"`
	Avatar    string   `json:"avatar"`
}

type taskListData struct {
	Total int                     `json:"total"`
	List  []models.TaskDescriptor `json:"list"`
}

type auditClaimRequest struct {
	TaskIDs []int64 `json:"taskIDs"`
}

type produceClaimRequest struct {
	ClueIDs []int64 `json:"clueIDs"`
}
