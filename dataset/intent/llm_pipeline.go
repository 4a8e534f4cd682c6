package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einoModel "github.com/cloudwego/eino/components/model"
	einoSchema "github.com/cloudwego/eino/schema"
	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/dsquery/dataset/inference"
	"github.com/Malowking/dsquery/dataset/query"
	"github.com/Malowking/dsquery/pkg/schema"
)

// LLMPipeline 基于对话模型的意图管道
type LLMPipeline struct {
	model    einoModel.BaseChatModel
	compiler *query.Compiler
}

// NewLLMPipeline 创建意图管道
func NewLLMPipeline(model einoModel.BaseChatModel, compiler *query.Compiler) *LLMPipeline {
	return &LLMPipeline{model: model, compiler: compiler}
}

// NewLLMPipelineFromConfig 读取 chat 配置创建意图管道，未配置 apiKey 时返回 ErrNotConfigured
func NewLLMPipelineFromConfig(ctx context.Context, compiler *query.Compiler) (*LLMPipeline, error) {
	cfg := &openai.ChatModelConfig{}
	if err := g.Cfg().MustGet(ctx, "chat").Scan(cfg); err != nil {
		return nil, fmt.Errorf("读取chat配置失败: %w", err)
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, ErrNotConfigured
	}
	cm, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("创建对话模型失败: %w", err)
	}
	return NewLLMPipeline(cm, compiler), nil
}

// ExtractIntent 调用模型抽取意图
func (p *LLMPipeline) ExtractIntent(ctx context.Context, question string, fields []schema.Field) (*Extraction, error) {
	messages := []*einoSchema.Message{
		einoSchema.SystemMessage("你是一个数据分析助手。根据数据集字段把用户问题转换为结构化查询意图，只输出JSON。"),
		einoSchema.UserMessage(buildPrompt(question, fields)),
	}

	resp, err := p.model.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("LLM调用失败: %w", err)
	}
	g.Log().Debugf(ctx, "intent response: %s", resp.Content)

	ext, err := parseExtraction(resp.Content)
	if err != nil {
		return nil, err
	}
	return ext, nil
}

// ValidateIntent 校验意图引用的字段，并把展示名替换为列名
func (p *LLMPipeline) ValidateIntent(intent *Intent, fields []schema.Field) *Validation {
	visible := make([]schema.Field, 0, len(fields))
	for _, f := range fields {
		if !f.Hidden {
			visible = append(visible, f)
		}
	}
	lookup := inference.NewFieldLookup(visible)
	v := &Validation{}

	resolve := func(kind string, refs []string) []string {
		out := make([]string, 0, len(refs))
		for _, ref := range refs {
			name, ok := lookup.Resolve(ref)
			if !ok {
				v.Errors = append(v.Errors, fmt.Sprintf("未知的%s字段: %s", kind, ref))
				continue
			}
			out = append(out, name)
		}
		return out
	}

	if len(intent.Measures) == 0 && len(intent.Dimensions) == 0 {
		v.Errors = append(v.Errors, "意图中没有度量或维度")
	}
	intent.Measures = resolve("度量", intent.Measures)
	intent.Dimensions = resolve("维度", intent.Dimensions)

	for i, f := range intent.Filters {
		name, ok := lookup.Resolve(f.Field)
		if !ok {
			v.Errors = append(v.Errors, fmt.Sprintf("未知的过滤字段: %s", f.Field))
			continue
		}
		intent.Filters[i].Field = name
		if !validOperator(f.Operator) {
			v.Errors = append(v.Errors, fmt.Sprintf("不支持的过滤运算符: %s", f.Operator))
		}
	}
	if intent.Limit < 0 {
		v.Errors = append(v.Errors, "limit 不能为负数")
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// IntentToSQL 使用查询编译器生成参数化SQL，DSL 为规范化后的意图JSON
func (p *LLMPipeline) IntentToSQL(intent *Intent, src *query.Source, fields []schema.Field, dialect query.Dialect) (*Translation, error) {
	spec := intent.Spec()
	spec.Limit = p.compiler.NormalizeLimit(spec.Limit)

	dsl, err := sonic.ConfigStd.MarshalToString(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal intent failed: %w", err)
	}
	sql, args, err := p.compiler.Compile(src, spec, fields, dialect)
	if err != nil {
		return nil, err
	}
	return &Translation{DSL: dsl, SQL: sql, Args: args}, nil
}

func validOperator(op schema.FilterOperator) bool {
	switch op {
	case schema.OpEquals, schema.OpNotEquals, schema.OpGreaterThan, schema.OpLessThan,
		schema.OpGreaterOrEqual, schema.OpLessOrEqual, schema.OpContains, schema.OpIn, schema.OpNotIn:
		return true
	}
	return false
}

// buildPrompt 构建LLM Prompt
func buildPrompt(question string, fields []schema.Field) string {
	var sb strings.Builder

	sb.WriteString("## 数据集字段\n")
	for _, f := range fields {
		if f.Hidden || f.Name == "" {
			continue
		}
		role := string(f.FieldType)
		if f.FieldType == schema.FieldTypeMeasure && f.AggregationType != "" {
			role += "/" + string(f.AggregationType)
		}
		sb.WriteString(fmt.Sprintf("- %s (%s, %s, %s)", f.Name, f.DisplayName, f.Type, role))
		if f.Description != "" {
			sb.WriteString(": " + f.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n## 规则\n")
	sb.WriteString("1. measures 只能使用度量字段，dimensions 只能使用维度字段\n")
	sb.WriteString("2. 字段使用上面列出的列名\n")
	sb.WriteString("3. 过滤运算符只能是 equals, not_equals, greater_than, less_than, greater_or_equal, less_or_equal, contains, in, not_in\n")
	sb.WriteString("4. 没有明确数量要求时 limit 为 0\n\n")

	sb.WriteString("## 用户问题\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("## 输出格式\n")
	sb.WriteString("```json\n")
	sb.WriteString(`{"intent": {"measures": [], "dimensions": [], "filters": [{"field": "", "operator": "", "value": ""}], "limit": 0}, "confidence": 0.9, "explanation": "", "suggestions": []}`)
	sb.WriteString("\n```\n")
	return sb.String()
}

// parseExtraction 解析LLM响应，兼容 ```json 代码块
func parseExtraction(content string) (*Extraction, error) {
	jsonStr := strings.TrimSpace(content)
	if start := strings.Index(jsonStr, "```"); start >= 0 {
		body := jsonStr[start+3:]
		body = strings.TrimPrefix(body, "json")
		if end := strings.Index(body, "```"); end >= 0 {
			jsonStr = strings.TrimSpace(body[:end])
		}
	} else if l, r := strings.Index(jsonStr, "{"), strings.LastIndex(jsonStr, "}"); l >= 0 && r > l {
		jsonStr = jsonStr[l : r+1]
	}

	ext := &Extraction{}
	if err := sonic.UnmarshalString(jsonStr, ext); err != nil {
		return nil, fmt.Errorf("解析意图失败: %w", err)
	}
	if ext.Confidence <= 0 {
		ext.Confidence = 0.8
	}
	return ext, nil
}
