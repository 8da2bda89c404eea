package profile

import "time"

// Freshness 是时间戳比较的三态结果。
type Freshness int

const (
	// NoBaseline 客户端没有提供上次保存时间，无从比较。
	NoBaseline Freshness = iota
	// Current 服务端状态未明显领先于客户端认知，可以写入。
	Current
	// Stale 服务端状态领先超出容差，客户端需要先对账。
	Stale
)

// Staleness 比较服务端最后写入时间与客户端自报的上次保存时间（epoch 毫秒）。
// 容差窗口用于吸收时钟偏差与一次往返的网络延迟，不要求严格相等；
// 只有服务端领先超过 tolerance 才判定为 Stale。
func Staleness(serverUpdatedAt time.Time, clientSavedMs int64, tolerance time.Duration) Freshness {
	if clientSavedMs <= 0 {
		return NoBaseline
	}
	if serverUpdatedAt.Sub(time.UnixMilli(clientSavedMs)) > tolerance {
		return Stale
	}
	return Current
}
