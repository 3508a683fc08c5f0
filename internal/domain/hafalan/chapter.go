// Package hafalan содержит доменную модель хафалана (заучивания Корана) сантри.
// Здесь нет внешних зависимостей: таблица джузов, типизированная запись,
// нормализация сырых документов и контракты репозиториев.
package hafalan

// ══════════════════════════════════════════════════════════════════════════════
// CHAPTER WEIGHT TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Tier - уровень сложности джуза.
type Tier string

const (
	TierEasy   Tier = "Mudah"
	TierMedium Tier = "Sedang"
	TierHard   Tier = "Sulit"
)

// Factor возвращает весовой коэффициент уровня.
func (t Tier) Factor() float64 {
	switch t {
	case TierEasy:
		return 1.0
	case TierMedium:
		return 1.5
	case TierHard:
		return 2.0
	default:
		return 1.0
	}
}

// IsValid проверяет, что уровень известен.
func (t Tier) IsValid() bool {
	return t == TierEasy || t == TierMedium || t == TierHard
}

// ChapterCount - количество джузов в Коране.
const ChapterCount = 30

// ChapterWeight описывает один джуз: уровень сложности и количество аятов.
type ChapterWeight struct {
	Chapter    int  `json:"chapter"`
	Tier       Tier `json:"tier"`
	VerseCount int  `json:"verse_count"`
}

// chapterTable неизменяема после инициализации пакета.
var chapterTable = [ChapterCount + 1]ChapterWeight{
	{},
	{1, TierHard, 148},
	{2, TierMedium, 111},
	{3, TierMedium, 126},
	{4, TierMedium, 131},
	{5, TierMedium, 123},
	{6, TierMedium, 110},
	{7, TierMedium, 149},
	{8, TierMedium, 142},
	{9, TierMedium, 159},
	{10, TierMedium, 127},
	{11, TierMedium, 151},
	{12, TierMedium, 170},
	{13, TierMedium, 154},
	{14, TierHard, 227},
	{15, TierMedium, 185},
	{16, TierMedium, 269},
	{17, TierMedium, 190},
	{18, TierMedium, 202},
	{19, TierHard, 339},
	{20, TierMedium, 171},
	{21, TierMedium, 178},
	{22, TierMedium, 169},
	{23, TierHard, 357},
	{24, TierMedium, 175},
	{25, TierHard, 246},
	{26, TierMedium, 195},
	{27, TierHard, 399},
	{28, TierMedium, 137},
	{29, TierHard, 431},
	{30, TierEasy, 564},
}

// IsKnownChapter проверяет, что номер джуза в диапазоне 1..30.
func IsKnownChapter(chapter int) bool {
	return chapter >= 1 && chapter <= ChapterCount
}

// Lookup возвращает описание джуза и признак его наличия в таблице.
func Lookup(chapter int) (ChapterWeight, bool) {
	if !IsKnownChapter(chapter) {
		return ChapterWeight{}, false
	}
	return chapterTable[chapter], true
}

// TierOf возвращает уровень сложности джуза.
// Для неизвестного джуза возвращается пустой Tier.
func TierOf(chapter int) Tier {
	w, _ := Lookup(chapter)
	return w.Tier
}

// VerseCountOf возвращает количество аятов джуза (0 для неизвестного).
func VerseCountOf(chapter int) int {
	w, _ := Lookup(chapter)
	return w.VerseCount
}

// DifficultyFactor возвращает коэффициент 1.0 / 1.5 / 2.0.
// Неизвестный джуз получает 1.0 и не считается ошибкой.
func DifficultyFactor(chapter int) float64 {
	w, ok := Lookup(chapter)
	if !ok {
		return 1.0
	}
	return w.Tier.Factor()
}

// Chapters возвращает копию всей таблицы в порядке номеров.
func Chapters() []ChapterWeight {
	out := make([]ChapterWeight, 0, ChapterCount)
	for ch := 1; ch <= ChapterCount; ch++ {
		out = append(out, chapterTable[ch])
	}
	return out
}

// WeightedVerses возвращает взвешенное число аятов полностью выученного джуза.
func WeightedVerses(chapter int) float64 {
	return float64(VerseCountOf(chapter)) * DifficultyFactor(chapter)
}
