//go:build benchmark

package benchmark

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/segmentio/ksuid"
)

// 压测配置，可由 test_config.json 覆盖。服务需关闭或调高限流
type TestConfig struct {
	BaseURL     string `json:"base_url"`
	Concurrency int    `json:"concurrency"`
	Requests    int    `json:"requests"`
}

var (
	config    TestConfig
	authToken string
	deviceID  string
)

// TestMain 注册一个压测用户并创建一台设备
func TestMain(m *testing.M) {
	if err := loadConfig(); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := prepare(); err != nil {
		fmt.Printf("准备压测数据失败: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func loadConfig() error {
	config = TestConfig{
		BaseURL:     "http://localhost:3000/v1",
		Concurrency: 10,
		Requests:    100,
	}

	data, err := os.ReadFile("test_config.json")
	if err == nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("解析配置文件失败: %w", err)
		}
	}
	return nil
}

func prepare() error {
	client := NewAPIBenchmark(config.BaseURL, 1, 1, "")

	var auth struct {
		Tokens struct {
			Access struct {
				Token string `json:"token"`
			} `json:"access"`
		} `json:"tokens"`
	}
	email := "bench-" + strings.ToLower(ksuid.New().String()) + "@example.com"
	status, err := client.Do(http.MethodPost, "/auth/register", map[string]string{
		"name":     "bench",
		"email":    email,
		"password": "benchmark-password",
	}, &auth)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("注册失败: HTTP %d", status)
	}
	authToken = auth.Tokens.Access.Token

	client.AuthToken = authToken
	var device struct {
		ID string `json:"id"`
	}
	status, err = client.Do(http.MethodPost, "/devices", map[string]string{"name": "bench-meter", "type": "meter"}, &device)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("创建设备失败: HTTP %d", status)
	}
	deviceID = device.ID
	return nil
}

func check(t *testing.T, name string, result *BenchmarkResult) {
	t.Helper()
	result.PrintResult()
	if result.FailureCount > 0 {
		t.Errorf("%s 失败: 成功率 %.2f%%", name, result.SuccessRate())
	}
}

func TestDeviceList(t *testing.T) {
	b := NewAPIBenchmark(config.BaseURL, config.Concurrency, config.Requests, authToken)
	check(t, "设备列表", b.RunGET("/devices?limit=20"))
}

func TestDeviceDetail(t *testing.T) {
	b := NewAPIBenchmark(config.BaseURL, config.Concurrency, config.Requests, authToken)
	check(t, "设备详情", b.RunGET("/devices/"+deviceID))
}

func TestHeartbeat(t *testing.T) {
	b := NewAPIBenchmark(config.BaseURL, config.Concurrency, config.Requests, authToken)
	check(t, "设备心跳", b.RunPOST("/devices/"+deviceID+"/heartbeat", nil))
}

func TestAppendLog(t *testing.T) {
	b := NewAPIBenchmark(config.BaseURL, config.Concurrency, config.Requests, authToken)
	check(t, "追加日志", b.RunPOST("/devices/"+deviceID+"/logs", map[string]interface{}{
		"event": "units_consumed",
		"value": 1.5,
	}))
}

func TestUsage(t *testing.T) {
	b := NewAPIBenchmark(config.BaseURL, config.Concurrency, config.Requests, authToken)
	check(t, "用量统计", b.RunGET("/devices/"+deviceID+"/usage?range=7d"))
}
