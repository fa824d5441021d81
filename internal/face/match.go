package face

import (
	"errors"
	"fmt"
	"math"
)

// DefaultThreshold 占位策略，并非校准过的生物识别阈值
const DefaultThreshold = 0.6

var ErrLengthMismatch = errors.New("face descriptors differ in length")

// MatchScore 逐元素绝对差之和（L1 距离），越小越相似
func MatchScore(a, b Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum, nil
}

// Matcher 阈值判定：score < Threshold 视为同一人
type Matcher struct {
	Threshold float64
}

func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Match 返回是否匹配以及得分
func (m Matcher) Match(reference, captured Descriptor) (bool, float64, error) {
	score, err := MatchScore(captured, reference)
	if err != nil {
		return false, 0, err
	}
	return score < m.Threshold, score, nil
}
