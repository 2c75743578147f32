// Package config는 애플리케이션 설정을 관리하는 패키지입니다.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 인터페이스는 설정 값에 액세스하기 위한 메서드를 정의합니다.
type Config interface {
	GetString(key string) string
	// Decode는 전체 설정(환경 변수 오버라이드 포함)을 yaml 태그 기반 구조체로 디코딩합니다.
	Decode(out interface{}) error
}

// viperConfig는 viper를 사용하여 Config 인터페이스를 구현합니다.
type viperConfig struct {
	v *viper.Viper
}

func (c *viperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

// Decode는 viper 설정 맵을 yaml 로 재직렬화한 뒤 대상 구조체에 디코딩합니다.
// mapstructure 태그 대신 yaml 태그를 그대로 쓰기 위한 방식입니다.
func (c *viperConfig) Decode(out interface{}) error {
	raw, err := yaml.Marshal(plainScalars(c.v.AllSettings()))
	if err != nil {
		return fmt.Errorf("설정 직렬화 실패: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("설정 디코딩 실패: %w", err)
	}
	return nil
}

// plainScalars는 문자열 값을 태그 없는 스칼라 노드로 바꿉니다.
// 환경 변수에서 온 "true", "30s" 같은 값이 bool, duration 필드로 디코딩되도록 합니다.
func plainScalars(in interface{}) interface{} {
	switch v := in.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = plainScalars(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = plainScalars(val)
		}
		return out
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
	default:
		return v
	}
}

// 설정 디렉토리 경로
const configDir = "configs"

// Load는 지정된 서비스 이름에 해당하는 설정 파일을 로드합니다.
//
// CONFIG_PATH 가 파일을 가리키면 그 파일을, 디렉토리를 가리키면
// {CONFIG_PATH}/{serviceName}.yaml 을 읽습니다. 지정되지 않으면
// configs/{APP_ENV}/{serviceName}.yaml, 그 다음 configs/example 순으로 찾습니다.
// {SERVICENAME}_DATABASE_PASSWORD 처럼 환경 변수로 모든 키를 덮어쓸 수 있습니다.
func Load(serviceName string) (Config, error) {
	v := viper.New()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev" // 기본 환경은 dev
	}

	v.SetConfigType("yaml")

	// 환경 변수 바인딩 설정
	v.SetEnvPrefix(strings.ToUpper(serviceName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("설정 파일 로드 실패: %w", err)
			}
			return &viperConfig{v: v}, nil
		}
	} else {
		configPath = filepath.Join(configDir, env)
	}

	v.SetConfigName(serviceName)
	v.AddConfigPath(configPath)

	if err := v.ReadInConfig(); err != nil {
		// configs/example 디렉토리에서 예제 설정 파일 시도
		v.AddConfigPath(filepath.Join(configDir, "example"))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("설정 파일 로드 실패: %w", err)
		}
	}

	return &viperConfig{v: v}, nil
}
