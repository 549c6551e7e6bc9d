package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Rejection is a user-correctable refusal. Its message is shown as is.
type Rejection struct {
	Message string
}

func (r *Rejection) Error() string { return r.Message }

func reject(format string, args ...any) *Rejection {
	return &Rejection{Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps a Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// OperationError is an unexpected failure while carrying out an operation.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string { return FormatOperationError(e.Op, e.Err) }

func (e *OperationError) Unwrap() error { return e.Err }

// FormatOperationError renders the standard "<op>に失敗しました: <cause>" text.
func FormatOperationError(op string, err error) string {
	return fmt.Sprintf("%sに失敗しました: %v", op, err)
}

func opErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Err: err}
}

// Messages shared with the tool layer.
const (
	MsgMissingTaskName     = "タスク名を指定してください"
	MsgMissingTaskID       = "タスクIDを指定してください"
	MsgMissingApprovalType = "承認タイプを指定してください（有効: design）"
	MsgMissingSubPhase     = "サブフェーズ名を指定してください"

	MsgNoActiveTask      = "進行中のタスクがありません"
	MsgTaskStateNotFound = "タスク状態ファイルが見つかりません"
	MsgAlreadyCompleted  = "タスクは既に完了しています"
	MsgCannotProceed     = "これ以上進めません"
)

func taskNotFound(taskID string) *Rejection {
	return reject("タスクが見つかりません: %s", taskID)
}

func invalidValue(param, value string, valid []string) *Rejection {
	return reject("無効な%sです: %s。有効な値: %s", param, value, strings.Join(valid, ", "))
}

func phaseMismatch(expected, current string) *Rejection {
	return reject("%sフェーズでのみ実行可能です（現在: %s）", expected, current)
}
