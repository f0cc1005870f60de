// Package resolver 提供地址名称解析器
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/metrics"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

const sourceStatic = "static"

var _ typeddata.NameResolver = (*Static)(nil)

// Static 静态地址簿解析器
type Static struct {
	book map[string]common.Address
}

// NewStatic 从名称到地址的映射创建地址簿, 名称不区分大小写
func NewStatic(book map[string]string) (*Static, error) {
	s := &Static{book: make(map[string]common.Address, len(book))}
	for name, addr := range book {
		key := normalize(name)
		if key == "" {
			return nil, fmt.Errorf("address book: empty name")
		}
		if strings.HasPrefix(key, "0x") {
			return nil, fmt.Errorf("address book: name %q looks like an address", name)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("address book: %q maps to invalid address %q", name, addr)
		}
		if _, dup := s.book[key]; dup {
			return nil, fmt.Errorf("address book: duplicate name %q", name)
		}
		s.book[key] = common.HexToAddress(addr)
	}
	return s, nil
}

// ResolveName 实现 typeddata.NameResolver
func (s *Static) ResolveName(ctx context.Context, name string) (common.Address, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, err
	}
	timer := metrics.NewTimer()
	addr, ok := s.book[normalize(name)]
	if !ok {
		err := errors.ErrNameNotFound.WithMessagef("name not found: %q", name).WithDetail("name", name)
		metrics.RecordNameResolution(sourceStatic, err, timer.ObserveSeconds())
		return common.Address{}, err
	}
	metrics.RecordNameResolution(sourceStatic, nil, timer.ObserveSeconds())
	return addr, nil
}

// Names 返回已登记的名称 (排序)
func (s *Static) Names() []string {
	names := make([]string, 0, len(s.book))
	for name := range s.book {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len 返回地址簿大小
func (s *Static) Len() int {
	return len(s.book)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
