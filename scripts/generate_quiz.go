// 手动调用 AI 生成一份测验，用于排查模型输出或提示词问题。
// 不写数据库，结果以 YAML 打印到标准输出。
//
// 用法: go run scripts/generate_quiz.go -topic "Data Structures" -difficulty Intermediate

package main

import (
	"context"
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/service"
	"edu_quiz_backend/pkg/logger"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// 只需要 AI 部分，避免整份配置里的时长字段
type scriptConfig struct {
	AI config.AIConfig `yaml:"ai"`
}

type generatedQuestion struct {
	Text    string   `yaml:"text"`
	Answers []string `yaml:"answers"`
	Correct int      `yaml:"correct_index"`
}

func main() {
	configFile := flag.String("config", "configs/config.yaml", "配置文件路径")
	topic := flag.String("topic", "", "课程名称")
	difficulty := flag.String("difficulty", string(model.Basic), "Basic / Intermediate / Advanced")
	flag.Parse()

	if *topic == "" {
		log.Fatal("必须指定 -topic")
	}
	level := model.Difficulty(*difficulty)
	if !level.Valid() {
		log.Fatalf("未知难度: %s", *difficulty)
	}

	data, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg scriptConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}
	if key := os.Getenv("AI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}

	// 错误信息直接打到终端
	if devLogger, err := zap.NewDevelopment(); err == nil {
		logger.Log = devLogger
	}

	provider := service.NewGeminiQuizProvider(cfg.AI)

	log.Printf("正在生成 %s 难度的测验: %s", level, *topic)
	specs, ok := provider.Generate(context.Background(), *topic, level)
	if !ok {
		log.Fatal("生成失败，详情见上方日志")
	}

	out := make([]generatedQuestion, 0, len(specs))
	for _, s := range specs {
		out = append(out, generatedQuestion{Text: s.Text, Answers: s.Answers, Correct: s.CorrectIndex})
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(out); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
}
