package database

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
)

// ErrNoTransaction 会话当前没有事务
var ErrNoTransaction = errors.New("database: no active transaction")

// Session 作用域内的工作单元。
// 同一作用域内共享一个 Session，作用域释放时回滚未提交的事务。
type Session struct {
	mu sync.Mutex
	db *gorm.DB
	tx *gorm.DB
}

// NewSession 创建会话
func NewSession(db *gorm.DB) *Session {
	return &Session{db: db}
}

// DB 返回当前句柄，事务进行中时返回事务句柄
func (s *Session) DB(ctx context.Context) *gorm.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// Begin 开启事务，已经在事务中时直接返回
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return nil
	}
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	s.tx = tx
	return nil
}

// InTransaction 判断是否有未结束的事务
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Commit 提交事务
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return ErrNoTransaction
	}
	err := s.tx.Commit().Error
	s.tx = nil
	return err
}

// Rollback 回滚事务
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollback()
}

func (s *Session) rollback() error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	err := s.tx.Rollback().Error
	s.tx = nil
	return err
}

// Dispose 回滚未提交的事务
func (s *Session) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	return s.rollback()
}
