package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

// Ledger 追加式执行台账：每条尝试记录一行 JSON，只追加、不改写、不压缩。
// 这是系统唯一的审计记录，所以每次 Append 都落盘（fsync）。
// 并发写者之间用互斥锁保证一条记录一次完整写入，不会出现半行。
type Ledger struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open 打开（必要时创建）台账文件，父目录不存在时一并创建
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	return &Ledger{f: f, path: path}, nil
}

// Path 返回台账文件路径
func (l *Ledger) Path() string { return l.path }

// Append 追加一条尝试记录。
// 序列化为单行 JSON，单次 Write 写入后立即 Sync，保证记录在控制权返回调用方之前已落盘。
func (l *Ledger) Append(a model.Attempt) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.Write(data); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return nil
}

// Close 关闭台账文件
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// Tail 读取台账末尾最多 n 条记录（仪表盘消费用）。
// 无法解析的行跳过，不视为错误；文件不存在时返回空列表。
func Tail(path string, n int) ([]model.Attempt, error) {
	if n <= 0 {
		n = 20
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var out []model.Attempt
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var a model.Attempt
		if err := json.Unmarshal(line, &a); err != nil {
			continue
		}
		out = append(out, a)
		if len(out) > n {
			out = out[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return out, nil
}

// Count 返回台账总记录数（仪表盘统计用）
func Count(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}
	return count, nil
}
