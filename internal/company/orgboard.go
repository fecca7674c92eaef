// Package company は会社登録と組織図の機能を提供する。
// 新規会社の作成フローと7部門21ポストの組織図管理を含む。
package company

import (
	"fmt"
	"sort"
	"strings"

	"github.com/assistchatbot-debug/DrAive/internal/model"
)

// founderPositionNumber は創業者が就くポスト番号。
const founderPositionNumber = 21

// boardPosition は組織図上の1ポスト定義。
type boardPosition struct {
	Number     int
	Name       string
	Department int
	Division   int
}

// orgBoard21 は新規会社にシードされる21ポストの定義。
// 7部門3ディビジョンの固定構造で、ポスト21が創業者席。
var orgBoard21 = []boardPosition{
	{Number: 21, Name: "Офис Учредителя", Department: 7, Division: 3},
	{Number: 20, Name: "Отдел официальных вопросов", Department: 7, Division: 3},
	{Number: 19, Name: "Офис директоров (CEO)", Department: 7, Division: 3},
	{Number: 1, Name: "Отдел персонала", Department: 1, Division: 1},
	{Number: 2, Name: "Отдел коммуникаций", Department: 1, Division: 1},
	{Number: 3, Name: "Отдел инспекций", Department: 1, Division: 1},
	{Number: 4, Name: "Отдел маркетинга", Department: 2, Division: 1},
	{Number: 5, Name: "Отдел рекламы", Department: 2, Division: 1},
	{Number: 6, Name: "Отдел продаж", Department: 2, Division: 1},
	{Number: 7, Name: "Отдел дохода", Department: 3, Division: 1},
	{Number: 8, Name: "Отдел расходов", Department: 3, Division: 1},
	{Number: 9, Name: "Отдел документации", Department: 3, Division: 1},
	{Number: 10, Name: "Отдел планирования", Department: 4, Division: 2},
	{Number: 11, Name: "Отдел обеспечения", Department: 4, Division: 2},
	{Number: 12, Name: "Отдел производства", Department: 4, Division: 2},
	{Number: 13, Name: "Отдел качества", Department: 5, Division: 2},
	{Number: 14, Name: "Отдел обучения", Department: 5, Division: 2},
	{Number: 15, Name: "Отдел коррекций", Department: 5, Division: 2},
	{Number: 16, Name: "Отдел информирования", Department: 6, Division: 2},
	{Number: 17, Name: "Отдел новых клиентов", Department: 6, Division: 2},
	{Number: 18, Name: "Отдел представительств", Department: 6, Division: 2},
}

// departmentNames は部門番号から部門名へのマップ。
var departmentNames = map[int]string{
	1: "Департамент 1: Кадровое отделение",
	2: "Департамент 2: Отделение расширения",
	3: "Департамент 3: Финансовое отделение",
	4: "Департамент 4: Технологическое отделение",
	5: "Департамент 5: Квалификационное отделение",
	6: "Департамент 6: Публичное отделение",
	7: "Департамент 7: Исполнительное отделение",
}

// seedPositions は新規会社の21ポストを生成する。
// 創業者は初期状態で全ポストに割り当てられ、ポスト21のみis_founderとなる。
func seedPositions(companyID, founderUserID string) []*model.Position {
	positions := make([]*model.Position, 0, len(orgBoard21))
	for _, p := range orgBoard21 {
		founderID := founderUserID
		positions = append(positions, &model.Position{
			CompanyID:        companyID,
			PositionNumber:   p.Number,
			PositionName:     p.Name,
			DepartmentNumber: p.Department,
			DivisionNumber:   p.Division,
			AssignedUserID:   &founderID,
			IsFounder:        p.Number == founderPositionNumber,
			IsCEO:            false,
		})
	}
	return positions
}

// FormatOrgChart は組織図をテキスト表示用に整形する。
// 部門ごとにグループ化し、割り当て済みポストに✅、空席に⚪を付ける。
func FormatOrgChart(positions []*model.Position, lang string) string {
	var b strings.Builder
	if lang == "en" {
		b.WriteString("📊 Company Organizational Structure\n")
	} else {
		b.WriteString("📊 Организационная структура компании\n")
	}

	// 部門番号ごとにグループ化して表示
	byDept := make(map[int][]*model.Position)
	for _, p := range positions {
		byDept[p.DepartmentNumber] = append(byDept[p.DepartmentNumber], p)
	}
	depts := make([]int, 0, len(byDept))
	for d := range byDept {
		depts = append(depts, d)
	}
	sort.Ints(depts)

	for _, d := range depts {
		name, ok := departmentNames[d]
		if !ok {
			name = fmt.Sprintf("Department %d", d)
		}
		b.WriteString("\n" + name + ":\n")

		ps := byDept[d]
		sort.Slice(ps, func(i, j int) bool {
			return ps[i].PositionNumber < ps[j].PositionNumber
		})
		for _, p := range ps {
			status := "⚪"
			if p.AssignedUserID != nil {
				status = "✅"
			}
			fmt.Fprintf(&b, "%s #%d. %s\n", status, p.PositionNumber, p.PositionName)
		}
	}
	return b.String()
}
