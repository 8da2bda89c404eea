// Package sortable 实现与实体形状无关的列表重排状态机。
// 会话持有独占的工作副本，保存成功前对权威数据零副作用。
package sortable

import (
	"context"
	"errors"
	"fmt"
)

// State 表示会话所处阶段。
type State int

const (
	// Idle 没有进行中的排序会话。
	Idle State = iota
	// Sorting 工作副本已建立，可以继续重排或保存。
	Sorting
	// Saving 正在逐条持久化工作副本。
	Saving
)

var (
	// ErrNotSorting 在没有活动会话时调用了重排/保存。
	ErrNotSorting = errors.New("no active sort session")
	// ErrAlreadySorting 会话已存在时重复进入排序模式。
	ErrAlreadySorting = errors.New("sort session already active")
)

// Session 管理一次重排会话。T 按值持有：进入会话即快照，
// 取消或保存完成后副本整体丢弃，不会向会话外泄露任何修改。
// assign 返回写入了新序号的条目副本，由调用方适配具体实体的 sortOrder 字段。
type Session[T any] struct {
	state  State
	items  []T
	assign func(item T, order int) T
	saved  func()
}

// NewSession 构造会话。assign 必填；saved 为保存成功后的刷新回调，可为 nil。
func NewSession[T any](assign func(item T, order int) T, saved func()) *Session[T] {
	return &Session[T]{
		state:  Idle,
		assign: assign,
		saved:  saved,
	}
}

// State 返回当前阶段。
func (s *Session[T]) State() State { return s.state }

// Items 返回工作副本的只读视图（保存请求体、测试断言使用）。
func (s *Session[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Enter 进入排序模式：快照 items（keep 非 nil 时仅保留其放行的条目），
// 并按位置赋予连续的 0 基序号。
func (s *Session[T]) Enter(items []T, keep func(T) bool) error {
	if s.state != Idle {
		return ErrAlreadySorting
	}

	working := make([]T, 0, len(items))
	for _, item := range items {
		if keep != nil && !keep(item) {
			continue
		}
		working = append(working, item)
	}
	for i := range working {
		working[i] = s.assign(working[i], i)
	}

	s.items = working
	s.state = Sorting
	return nil
}

// Cancel 丢弃工作副本，无任何副作用。
func (s *Session[T]) Cancel() {
	s.items = nil
	s.state = Idle
}

// MoveTo 把 from 位置的条目取出并插入 to 位置（拖拽语义），
// 然后为整个副本重新赋予连续序号。
func (s *Session[T]) MoveTo(from, to int) error {
	if s.state != Sorting {
		return ErrNotSorting
	}
	n := len(s.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d out of range [0,%d)", from, to, n)
	}

	item := s.items[from]
	rest := append(s.items[:from:from], s.items[from+1:]...)
	s.items = append(rest[:to:to], append([]T{item}, rest[to:]...)...)
	s.renumber()
	return nil
}

// Step 将 index 位置的条目与相邻条目交换。direction 取 -1（上移）或 +1（下移）；
// 邻居越界时不动作也不报错，方便上层把按钮保持常亮。
func (s *Session[T]) Step(index, direction int) error {
	if s.state != Sorting {
		return ErrNotSorting
	}
	if direction != -1 && direction != 1 {
		return fmt.Errorf("direction must be -1 or +1, got %d", direction)
	}
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("index %d out of range [0,%d)", index, len(s.items))
	}

	neighbor := index + direction
	if neighbor < 0 || neighbor >= len(s.items) {
		return nil
	}

	s.items[index], s.items[neighbor] = s.items[neighbor], s.items[index]
	// 与拖拽保持同一契约：整表重赋序号。
	s.renumber()
	return nil
}

// Save 按副本当前顺序逐条持久化。transform 非 nil 时在发送前重塑条目
// （如把标签列表序列化为线上格式）。任一条失败即中断：副本保留、
// 会话停在 Sorting，由操作者决定重试；不做部分回滚。
// 全部成功后触发 saved 回调并回到 Idle。
func (s *Session[T]) Save(ctx context.Context, persist func(ctx context.Context, item T) error, transform func(T) T) error {
	if s.state != Sorting {
		return ErrNotSorting
	}

	s.state = Saving
	for i, item := range s.items {
		if transform != nil {
			item = transform(item)
		}
		if err := persist(ctx, item); err != nil {
			s.state = Sorting
			return fmt.Errorf("persist item %d: %w", i, err)
		}
	}

	s.items = nil
	s.state = Idle
	if s.saved != nil {
		s.saved()
	}
	return nil
}

func (s *Session[T]) renumber() {
	for i := range s.items {
		s.items[i] = s.assign(s.items[i], i)
	}
}
