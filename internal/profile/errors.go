package profile

import (
	"errors"
	"fmt"

	"mefolio/internal/database"
)

// 协议失败类别。调用方（HTTP 层）按类别映射状态码与提示文案，
// 不允许把不同类别折叠成一个笼统错误。
var (
	// ErrInvalidName 档案名去除首尾空白后长度不在 [2,100] 内。
	ErrInvalidName = errors.New("profile name must be 2-100 characters")
	// ErrMissingData 请求缺少简历正文。
	ErrMissingData = errors.New("resume data is required")
	// ErrInvalidRequest 请求参数组合不合法（如 load 既无名称也无设备令牌）。
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNameTaken 名称已存在且当前设备不在授权集合内。
	// 调用方应引导用户改走 load/claim 流程，而不是覆盖他人档案。
	ErrNameTaken = errors.New("profile name already taken")
	// ErrRateLimited 同一设备写入过于频繁。
	ErrRateLimited = errors.New("too many saves from this device, slow down")
	// ErrNotFound 档案不存在。对 load 是正常结果，对 claim 是硬失败。
	ErrNotFound = errors.New("profile not found")
)

// ConflictError 表示服务端状态比客户端认知的更新，超出容差。
// 携带服务端完整快照，让客户端能向用户提供合并/覆盖的选择；服务端从不擅自裁决。
type ConflictError struct {
	Server *database.ResumeProfile
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("profile %q was modified on another device at %s",
		e.Server.ProfileName, e.Server.UpdatedAt.Format("2006-01-02 15:04:05"))
}
