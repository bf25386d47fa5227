package crisis

import (
	"sort"
	"strings"
)

// Decision 单条用户消息的检测结果
type Decision struct {
	Crisis  bool
	Matches []string
}

// Resources 消息被标记时追加到回复末尾的求助信息
const Resources = `

**IMMEDIATE SUPPORT AVAILABLE:**
- **Crisis Text Line:** Text HOME to 741741
- **Suicide & Crisis Lifeline:** Call or text 988
- **Campus Counseling Center:** Contact your school's counseling services
- **Campus Security:** Call your campus emergency number

If you're in immediate danger, please call 911 or go to your nearest emergency room.`

var keywords = []string{
	"suicide",
	"kill myself",
	"end my life",
	"want to die",
	"self-harm",
	"cut myself",
	"hurt myself",
	"overdose",
	"not worth living",
}

// Detector 不区分大小写地标记包含危机短语的消息
type Detector struct {
	phrases []string
}

// NewDetector 使用内置短语和额外短语构建检测器
func NewDetector(extra ...string) *Detector {
	seen := make(map[string]struct{}, len(keywords)+len(extra))
	phrases := make([]string, 0, len(keywords)+len(extra))
	for _, p := range append(append([]string(nil), keywords...), extra...) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		phrases = append(phrases, p)
	}
	return &Detector{phrases: phrases}
}

// Detect 检测消息中的危机短语，匹配结果排序以便日志稳定
func (d *Detector) Detect(message string) Decision {
	normalized := strings.ToLower(message)
	if strings.TrimSpace(normalized) == "" {
		return Decision{}
	}

	var matches []string
	for _, phrase := range d.phrases {
		if strings.Contains(normalized, phrase) {
			matches = append(matches, phrase)
		}
	}
	sort.Strings(matches)
	return Decision{Crisis: len(matches) > 0, Matches: matches}
}

var defaultDetector = NewDetector()

// Detect 使用内置短语检测消息
func Detect(message string) Decision {
	return defaultDetector.Detect(message)
}
