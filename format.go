package main

import (
	"fmt"
	"sort"
	"strings"
)

// FormatShowcase renders a showcase as plain text for the terminal.
func FormatShowcase(s *Showcase) string {
	var b strings.Builder

	p := &s.Player
	fmt.Fprintf(&b, "%s (UID %s)  AR %d  WL %d\n", p.Nickname, orDash(s.UID), p.Level, p.WorldLevel)
	if p.Signature != "" {
		fmt.Fprintf(&b, "\"%s\"\n", p.Signature)
	}
	fmt.Fprintf(&b, "Achievements: %d  Abyss: %d-%d\n", p.Achievements, p.AbyssFloor, p.AbyssChamber)

	if s.Empty {
		b.WriteString("\nShowcase is empty or character details are hidden.\n")
		return b.String()
	}

	for i := range s.Characters {
		b.WriteString("===================\n")
		formatCharacter(&b, &s.Characters[i])
	}
	return b.String()
}

func formatCharacter(b *strings.Builder, c *Character) {
	fmt.Fprintf(b, "%s  %s %d★  Lv.%d  C%d  Friendship %d\n",
		c.Name, c.Element, c.Rarity, c.Level, c.Constellation, c.Friendship)

	st := &c.Stats
	fmt.Fprintf(b, "HP %.0f  ATK %.0f  DEF %.0f  EM %.0f\n", st.HP, st.ATK, st.DEF, st.ElementalMastery)
	fmt.Fprintf(b, "CRIT %.1f%% / %.1f%%  ER %.1f%%\n", st.CritRate, st.CritDMG, st.EnergyRecharge)

	if len(c.SkillLevels) > 0 {
		ids := make([]int, 0, len(c.SkillLevels))
		for id := range c.SkillLevels {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprint(c.SkillLevels[id])
		}
		fmt.Fprintf(b, "Talents: %s\n", strings.Join(parts, "/"))
	}

	if w := c.Weapon; w != nil {
		fmt.Fprintf(b, "Weapon: %s R%d Lv.%d  %s %s", w.Name, w.Refinement, w.Level, w.MainStat.Name, w.MainStat.Display)
		if w.SubStat != nil {
			fmt.Fprintf(b, "  %s %s", w.SubStat.Name, w.SubStat.Display)
		}
		b.WriteString("\n")
	}

	total := 0.0
	for i := range c.Artifacts {
		a := &c.Artifacts[i]
		fmt.Fprintf(b, "  %-18s +%-2d %s %s", a.Slot, a.Level, a.MainStat.Name, a.MainStat.Display)
		if a.Score != nil {
			total += a.Score.Total
			fmt.Fprintf(b, "  [%.1f %s]", toFixed1(a.Score.Total), a.Score.Rating)
		}
		b.WriteString("\n")

		var subs []string
		for _, sub := range a.SubStats {
			subs = append(subs, sub.Name+" "+sub.Display)
		}
		if len(subs) > 0 {
			fmt.Fprintf(b, "    %s\n", strings.Join(subs, ", "))
		}
	}
	if len(c.Artifacts) > 0 {
		fmt.Fprintf(b, "Artifact score: %.1f\n", toFixed1(total))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
