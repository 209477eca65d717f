package strategy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/miradorstack/churn-triage/internal/models"
)

var schemaExample = Result{
	StrategyCards: []Card{{
		Title:             "추천 전략 01 - 핵심 전략",
		Headline:          "즉각 혜택 제공",
		Desc:              "단기 혜택으로 이탈을 늦추고 재방문을 유도",
		Bullets:           []string{"혜택 중심 메시지", "유효기간 명확화", "재방문 트리거 설계"},
		KPILeftLabel:      "이탈률",
		KPILeftValue:      18,
		KPILeftDirection:  "down",
		KPIRightLabel:     "반응률",
		KPIRightValue:     25,
		KPIRightDirection: "up",
	}},
	ChannelTable: []ChannelRow{
		{Channel: "Push", Score: 5, MessagePoint: "혜택 + 긴급성", Reason: "즉각 반응"},
		{Channel: "SMS", Score: 4, MessagePoint: "이탈 방지", Reason: "높은 도달률"},
		{Channel: "Email", Score: 3, MessagePoint: "정보성 콘텐츠", Reason: "장기 관계 유지"},
		{Channel: "In-app", Score: 3, MessagePoint: "행동 유도", Reason: "사용 흐름 연결"},
	},
	MessageExamples: []MessageExample{
		{Channel: "Push", Text: "지금 돌아오시면 OOO 혜택을 드려요. 오늘까지!"},
		{Channel: "Email", Text: "최근 이용이 줄어 맞춤 혜택을 준비했어요."},
	},
}

// BuildPrompt renders the marketing brief for one customer.
func BuildPrompt(customer map[string]any, constraints string, segment models.SegmentSummary) string {
	profile, _ := json.Marshal(customer)
	schema, _ := json.Marshal(schemaExample)

	if strings.TrimSpace(constraints) == "" {
		constraints = "제약 없음"
	}
	avg := "null"
	if segment.AvgChurnProba != nil {
		avg = fmt.Sprintf("%.6f", *segment.AvgChurnProba)
	}

	var b strings.Builder
	b.WriteString("너는 금융 CRM 마케팅 전략가다.\n")
	b.WriteString("아래 고객 1명을 위한 리텐션 전략 화면 데이터를 JSON으로만 생성해라.\n\n")
	fmt.Fprintf(&b, "[고객 프로필]\n%s\n\n", profile)
	fmt.Fprintf(&b, "[브랜드/정책/제약]\n%s\n\n", constraints)
	fmt.Fprintf(&b, "[세그먼트 참고]\n- segment_count: %d\n- segment_avg_churn_proba: %s\n\n", segment.Count, avg)
	b.WriteString("[출력 규칙]\n")
	b.WriteString("- JSON 객체 하나만 출력한다. 설명, 마크다운, 코드블록 금지.\n")
	b.WriteString("- 최상위 키는 strategy_cards, channel_table, message_examples 그대로 사용한다.\n")
	b.WriteString("- strategy_cards는 정확히 3개: (1) 이탈 원인 분석 (2) 혜택/오퍼 (3) 재활성화 유도.\n")
	b.WriteString("- 카드마다 bullets는 3~4개, kpi direction은 up 또는 down, 값은 과장하지 않는다.\n")
	fmt.Fprintf(&b, "- channel_table은 %s 4개 채널 고정, score는 1~5 정수.\n", strings.Join(Channels, ", "))
	b.WriteString("- message_examples는 2~4개, 채널별로 짧고 구체적으로.\n\n")
	fmt.Fprintf(&b, "[JSON 스키마 예시]\n%s\n", schema)
	return b.String()
}
