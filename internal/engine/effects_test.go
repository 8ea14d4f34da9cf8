package engine

import (
	"testing"

	"github.com/Moszee/generic-sim/internal/tribe"
)

type member struct {
	name   string
	role   tribe.Role
	age    int
	health int
}

// buildTribe creates a tribe with one family per argument, each with empty
// storage, and central storage disabled.
func buildTribe(t *testing.T, families ...[]member) *tribe.Tribe {
	t.Helper()
	tr := tribe.New(1, "test", "")
	for i, members := range families {
		f := tr.AddFamily(string(rune('A'+i)), tribe.Resources{})
		for _, m := range members {
			p := tr.AddPerson(tribe.Person{
				Name: m.name, Role: m.role, Age: m.age, Health: m.health,
				HuntingSkill: 0.5, GatheringSkill: 0.5,
			})
			if err := tr.AssignToFamily(p.ID, f.ID); err != nil {
				t.Fatal(err)
			}
		}
	}
	return tr
}

func TestGatheringYields(t *testing.T) {
	tr := buildTribe(t, []member{
		{"hunter", tribe.RoleHunter, 25, 100},
		{"gatherer", tribe.RoleGatherer, 25, 100},
		{"weak", tribe.RoleHunter, 25, 30},
		{"child", tribe.RoleChild, 8, 100},
	})
	rng := &scriptedRNG{ints: []int{4, 2, 3}}
	ctx := NewTickContext(tr, rng)
	ctx.SnapshotFamilies()

	GatheringEffect{}.Apply(ctx)

	// hunter: (10+4)*1.5 + 5 = 26; gatherer: (5+2)*1.5 + 5 = 15 food, (8+3)*1.5 + 5 = 21 water
	f := tr.Families[0]
	if f.Storage.Food != 41 || f.Storage.Water != 21 {
		t.Errorf("storage = %+v, want 41/21", f.Storage)
	}
	if rng.pos != 3 {
		t.Errorf("rng draws = %d, want 3 (weak member and child must not draw)", rng.pos)
	}
	if hunter := tr.Person(1); hunter.HuntingSkill != 0.51 {
		t.Errorf("hunter skill = %v, want 0.51", hunter.HuntingSkill)
	}
	if gatherer := tr.Person(2); gatherer.GatheringSkill != 0.51 {
		t.Errorf("gatherer skill = %v, want 0.51", gatherer.GatheringSkill)
	}
	if ctx.FoodGathered(f.ID) != 41 || ctx.WaterGathered(f.ID) != 21 {
		t.Errorf("gathered = %d/%d", ctx.FoodGathered(f.ID), ctx.WaterGathered(f.ID))
	}
}

func TestGatheringWithoutFamilyIsLost(t *testing.T) {
	tr := tribe.New(1, "t", "")
	tr.AddPerson(tribe.Person{Name: "loner", Role: tribe.RoleHunter, Age: 30, Health: 100})
	ctx := NewTickContext(tr, &scriptedRNG{})
	GatheringEffect{}.Apply(ctx)

	tr.RefreshTotals()
	if !tr.Resources.IsZero() || !tr.Central.IsZero() {
		t.Errorf("loner's yield was kept: %+v %+v", tr.Resources, tr.Central)
	}
}

func TestElderBonusLeavesYieldUnchanged(t *testing.T) {
	cases := []struct {
		name   string
		elders int
		skill  float64
		roll   int
		want   int
	}{
		{"one elder", 1, 0.7, 7, 33},   // int(17 * 1.7) + 5
		{"ten elders", 10, 0.5, 9, 33}, // int(19 * 1.5) + 5
		{"no elders", 0, 0.5, 0, 20},   // int(10 * 1.5) + 5
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			group := []member{{"hunter", tribe.RoleHunter, 25, 100}}
			for i := 0; i < tc.elders; i++ {
				group = append(group, member{"elder", tribe.RoleElder, 70, 100})
			}
			tr := buildTribe(t, group)
			tr.Policy.HuntingIncentive = 5
			tr.Person(tr.Members[0].ID).SetHuntingSkill(tc.skill)

			ctx := NewTickContext(tr, &scriptedRNG{ints: []int{tc.roll}})
			ctx.SnapshotFamilies()
			ctx.ComputeElderBonus()
			if ctx.ElderCount != tc.elders {
				t.Fatalf("elders = %d, want %d", ctx.ElderCount, tc.elders)
			}
			if want := 1 + float64(tc.elders)*2/100; ctx.ElderGatheringBonus != want {
				t.Errorf("bonus = %v, want %v", ctx.ElderGatheringBonus, want)
			}

			GatheringEffect{}.Apply(ctx)
			if got := tr.Families[0].Storage.Food; got != tc.want {
				t.Errorf("food = %d, want %d", got, tc.want)
			}
		})
	}
}

func centralTribe(t *testing.T, rate int, families int) *tribe.Tribe {
	t.Helper()
	groups := make([][]member, families)
	for i := range groups {
		groups[i] = []member{{"m", tribe.RoleChild, 5, 100}}
	}
	tr := buildTribe(t, groups...)
	tr.Policy.EnableCentralStorage = true
	tr.Policy.CentralStorageTaxRate = rate
	tr.Central = &tribe.Resources{}
	return tr
}

func TestCentralTaxOnGatheredDelta(t *testing.T) {
	tr := centralTribe(t, 10, 1)
	f := tr.Families[0]
	f.Storage.Set(500, 500) // Standing storage is not taxed.

	ctx := NewTickContext(tr, &scriptedRNG{})
	ctx.SnapshotFamilies()
	f.Storage.Add(100, 80)

	tax := CentralTaxEffect{}
	if !tax.ShouldApply(ctx) {
		t.Fatal("tax should apply with central storage enabled")
	}
	tax.Apply(ctx)

	if f.Storage != (tribe.Resources{Food: 590, Water: 572}) {
		t.Errorf("family = %+v, want 590/572", f.Storage)
	}
	if *tr.Central != (tribe.Resources{Food: 10, Water: 8}) {
		t.Errorf("central = %+v, want 10/8", *tr.Central)
	}
}

func TestCentralTaxIsAdditiveAcrossFamilies(t *testing.T) {
	tr := centralTribe(t, 20, 2)
	ctx := NewTickContext(tr, &scriptedRNG{})
	ctx.SnapshotFamilies()
	tr.Families[0].Storage.Add(100, 80)
	tr.Families[1].Storage.Add(50, 50)

	CentralTaxEffect{}.Apply(ctx)

	if *tr.Central != (tribe.Resources{Food: 30, Water: 26}) {
		t.Errorf("central = %+v, want 30/26", *tr.Central)
	}
	if tr.Families[0].Storage != (tribe.Resources{Food: 80, Water: 64}) {
		t.Errorf("family A = %+v", tr.Families[0].Storage)
	}
	if tr.Families[1].Storage != (tribe.Resources{Food: 40, Water: 40}) {
		t.Errorf("family B = %+v", tr.Families[1].Storage)
	}
}

func TestCentralTaxZeroGathering(t *testing.T) {
	tr := centralTribe(t, 50, 1)
	tr.Families[0].Storage.Set(40, 40)
	ctx := NewTickContext(tr, &scriptedRNG{})
	ctx.SnapshotFamilies()

	CentralTaxEffect{}.Apply(ctx)
	if !tr.Central.IsZero() || tr.Families[0].Storage != (tribe.Resources{Food: 40, Water: 40}) {
		t.Errorf("zero gathering was taxed: central=%+v family=%+v", *tr.Central, tr.Families[0].Storage)
	}
}

func TestCentralTaxDisabled(t *testing.T) {
	tr := centralTribe(t, 10, 1)
	tr.Policy.EnableCentralStorage = false
	if (CentralTaxEffect{}).ShouldApply(NewTickContext(tr, &scriptedRNG{})) {
		t.Error("tax applies with central storage disabled")
	}
}

func TestGatheredWithoutSnapshotIsZero(t *testing.T) {
	tr := centralTribe(t, 10, 1)
	ctx := NewTickContext(tr, &scriptedRNG{})
	tr.Families[0].Storage.Add(100, 100)
	if ctx.FoodGathered(tr.Families[0].ID) != 0 || ctx.WaterGathered(99) != 0 {
		t.Error("gathered reported without snapshot")
	}

	ctx.SnapshotFamilies()
	tr.Families[0].Storage.Add(-50, -50)
	if ctx.FoodGathered(tr.Families[0].ID) != 0 {
		t.Error("negative delta not floored at zero")
	}
}

func TestStorageDecayInterval(t *testing.T) {
	tr := centralTribe(t, 10, 1)
	tr.Policy.StorageDecayInterval = 20
	tr.Policy.StorageDecayRate = 0.1
	tr.Families[0].Storage.Set(100, 80)
	tr.Central.Set(100, 100)

	r := NewRegistry()
	r.Register(StorageDecayEffect{})

	tr.CurrentTick = 10
	r.ExecutePhase(PhaseResourceDecay, NewTickContext(tr, &scriptedRNG{}))
	if tr.Families[0].Storage != (tribe.Resources{Food: 100, Water: 80}) {
		t.Fatalf("decayed off-interval: %+v", tr.Families[0].Storage)
	}

	tr.CurrentTick = 20
	r.ExecutePhase(PhaseResourceDecay, NewTickContext(tr, &scriptedRNG{}))
	if tr.Families[0].Storage != (tribe.Resources{Food: 90, Water: 72}) {
		t.Errorf("family = %+v, want 90/72", tr.Families[0].Storage)
	}
	if *tr.Central != (tribe.Resources{Food: 90, Water: 90}) {
		t.Errorf("central = %+v, want 90/90", *tr.Central)
	}
}

func TestStorageDecayDisabled(t *testing.T) {
	tr := centralTribe(t, 10, 1)
	for _, interval := range []int{0, -5} {
		tr.Policy.StorageDecayInterval = interval
		tr.CurrentTick = 20
		if (StorageDecayEffect{}).ShouldApply(NewTickContext(tr, &scriptedRNG{})) {
			t.Errorf("decay applies with interval %d", interval)
		}
	}
}

func TestConsume(t *testing.T) {
	tr := buildTribe(t, []member{{"a", tribe.RoleHunter, 20, 100}, {"b", tribe.RoleHunter, 20, 100}})
	f := tr.Families[0]

	f.Storage.Set(6, 8)
	if !Consume(f) {
		t.Error("exact need reported insufficient")
	}
	if !f.Storage.IsZero() {
		t.Errorf("storage = %+v", f.Storage)
	}

	f.Storage.Set(10, 3)
	if Consume(f) {
		t.Error("water shortage reported sufficient")
	}
	if f.Storage != (tribe.Resources{Food: 4, Water: 0}) {
		t.Errorf("storage = %+v, want 4/0", f.Storage)
	}
}

func lendingTribe(t *testing.T, bond int) *tribe.Tribe {
	t.Helper()
	tr := buildTribe(t,
		[]member{{"n1", tribe.RoleHunter, 20, 100}, {"n2", tribe.RoleHunter, 20, 100}},
		[]member{{"l1", tribe.RoleHunter, 20, 100}},
	)
	tr.BondLevel = bond
	tr.Families[1].Storage.Set(50, 40)
	return tr
}

func TestBorrowAlwaysSucceedsAtFullBond(t *testing.T) {
	for seed := 0; seed < 20; seed++ {
		tr := lendingTribe(t, 100)
		ctx := NewTickContext(tr, &scriptedRNG{ints: []int{seed * 5}})
		lender := Borrow(ctx, tr.Families[0], 6, 8)
		if lender == nil || lender.ID != tr.Families[1].ID {
			t.Fatalf("roll %d: borrowing failed at bond 100", seed*5)
		}
		if tr.Families[0].Storage != (tribe.Resources{Food: 6, Water: 8}) {
			t.Errorf("needy = %+v, want 6/8", tr.Families[0].Storage)
		}
		if tr.Families[1].Storage != (tribe.Resources{Food: 44, Water: 32}) {
			t.Errorf("lender = %+v, want 44/32", tr.Families[1].Storage)
		}
		if tr.BondLevel != 100 {
			t.Errorf("bond = %d, want capped 100", tr.BondLevel)
		}
	}
}

func TestBorrowAlwaysFailsAtZeroBond(t *testing.T) {
	tr := lendingTribe(t, 0)
	ctx := NewTickContext(tr, &scriptedRNG{ints: []int{0}})
	if lender := Borrow(ctx, tr.Families[0], 6, 8); lender != nil {
		t.Fatal("borrowing succeeded at bond 0")
	}
	if tr.BondLevel != 0 {
		t.Errorf("bond = %d, want 0", tr.BondLevel)
	}
	if !tr.Families[0].Storage.IsZero() {
		t.Errorf("needy received %+v", tr.Families[0].Storage)
	}
}

func TestBorrowFailureLowersBondAndTriesNext(t *testing.T) {
	tr := buildTribe(t,
		[]member{{"needy", tribe.RoleHunter, 20, 100}},
		[]member{{"rich", tribe.RoleHunter, 20, 100}},
		[]member{{"richer", tribe.RoleHunter, 20, 100}},
	)
	tr.BondLevel = 50
	tr.Families[1].Storage.Set(40, 0)
	tr.Families[2].Storage.Set(60, 60)

	// First roll (richer) fails, second (rich) succeeds.
	ctx := NewTickContext(tr, &scriptedRNG{ints: []int{80, 10}})
	lender := Borrow(ctx, tr.Families[0], 3, 4)
	if lender == nil || lender.Name != "B" {
		t.Fatalf("lender = %v, want family B", lender)
	}
	if tr.BondLevel != 49 {
		t.Errorf("bond = %d, want 50-2+1", tr.BondLevel)
	}
	if tr.Families[0].Storage != (tribe.Resources{Food: 3, Water: 0}) {
		t.Errorf("needy = %+v", tr.Families[0].Storage)
	}
}

func TestBorrowSkipsLendersWithoutSurplus(t *testing.T) {
	tr := lendingTribe(t, 100)
	tr.Families[1].Storage.Set(6, 500) // 6 food for one member is no surplus
	ctx := NewTickContext(tr, &scriptedRNG{})
	if Borrow(ctx, tr.Families[0], 6, 8) != nil {
		t.Error("borrowed from a lender without food surplus")
	}
}

func TestDrawCentral(t *testing.T) {
	tr := centralTribe(t, 10, 1)
	f := tr.Families[0]
	tr.Central.Set(2, 100)

	if !DrawCentral(tr, f, 3, 4) {
		t.Fatal("draw failed with stock available")
	}
	if f.Storage != (tribe.Resources{Food: 2, Water: 4}) || *tr.Central != (tribe.Resources{Food: 0, Water: 96}) {
		t.Errorf("family=%+v central=%+v", f.Storage, *tr.Central)
	}

	tr.Central.Set(0, 0)
	if DrawCentral(tr, f, 3, 4) {
		t.Error("draw from empty pool reported success")
	}
	tr.Central.Set(10, 10)
	tr.Policy.EnableCentralStorage = false
	if DrawCentral(tr, f, 3, 4) {
		t.Error("draw succeeded with central storage disabled")
	}
}

func TestSelectSufferer(t *testing.T) {
	tr := buildTribe(t,
		[]member{
			{"hunter", tribe.RoleHunter, 30, 100},
			{"child", tribe.RoleChild, 8, 100},
			{"elder", tribe.RoleElder, 70, 100},
			{"gatherer", tribe.RoleGatherer, 25, 100},
		},
		[]member{
			{"g-old", tribe.RoleGatherer, 50, 100},
			{"g-young", tribe.RoleGatherer, 18, 100},
			{"g-mid", tribe.RoleGatherer, 30, 100},
		},
	)
	full, gatherers := tr.Families[0], tr.Families[1]

	cases := []struct {
		family   *tribe.Family
		priority tribe.SharingPriority
		rng      []int
		want     string
	}{
		{full, tribe.SharingElder, nil, "elder"},
		{full, tribe.SharingChild, nil, "child"},
		{full, tribe.SharingHunter, nil, "hunter"},
		{full, tribe.SharingGatherer, nil, "gatherer"},
		{full, tribe.SharingYoungest, nil, "child"},
		{full, tribe.SharingRandom, []int{2}, "elder"},
		{gatherers, tribe.SharingElder, nil, "g-old"},
		{gatherers, tribe.SharingChild, nil, "g-young"},
		{gatherers, tribe.SharingHunter, nil, "g-old"},
		{gatherers, tribe.SharingYoungest, nil, "g-young"},
	}
	for _, c := range cases {
		got := SelectSufferer(tr, c.family, c.priority, &scriptedRNG{ints: c.rng})
		if got == nil || got.Name != c.want {
			t.Errorf("%s in %s: got %v, want %s", c.priority, c.family.Name, got, c.want)
		}
	}

	empty := tr.AddFamily("empty", tribe.Resources{})
	if SelectSufferer(tr, empty, tribe.SharingRandom, &scriptedRNG{}) != nil {
		t.Error("empty family produced a sufferer")
	}
}

func TestUpkeepOutcomes(t *testing.T) {
	t.Run("satisfied", func(t *testing.T) {
		tr := buildTribe(t, []member{{"a", tribe.RoleHunter, 20, 90}, {"b", tribe.RoleHunter, 20, 98}})
		tr.Families[0].Storage.Set(20, 20)
		out := upkeepFamily(NewTickContext(tr, &scriptedRNG{}), tr.Families[0])
		if out != OutcomeSatisfied {
			t.Fatalf("outcome = %v", out)
		}
		if tr.Person(1).Health != 95 || tr.Person(2).Health != 100 {
			t.Errorf("health = %d, %d", tr.Person(1).Health, tr.Person(2).Health)
		}
		if tr.Families[0].Storage != (tribe.Resources{Food: 14, Water: 12}) {
			t.Errorf("storage = %+v", tr.Families[0].Storage)
		}
	})

	t.Run("central", func(t *testing.T) {
		tr := centralTribe(t, 10, 1)
		tr.Central.Set(100, 100)
		out := upkeepFamily(NewTickContext(tr, &scriptedRNG{}), tr.Families[0])
		if out != OutcomeCentral {
			t.Fatalf("outcome = %v", out)
		}
		if tr.Families[0].Storage != (tribe.Resources{Food: 3, Water: 4}) {
			t.Errorf("storage = %+v", tr.Families[0].Storage)
		}
	})

	t.Run("suffered", func(t *testing.T) {
		tr := buildTribe(t, []member{{"young", tribe.RoleHunter, 20, 10}, {"old", tribe.RoleElder, 65, 100}})
		tr.Policy.SharingPriority = tribe.SharingYoungest
		ctx := NewTickContext(tr, &scriptedRNG{})
		if out := upkeepFamily(ctx, tr.Families[0]); out != OutcomeSuffered {
			t.Fatalf("outcome = %v", out)
		}
		if tr.Person(1).Health != 0 {
			t.Errorf("health = %d, want floored 0", tr.Person(1).Health)
		}
		if tr.Person(2).Health != 100 {
			t.Errorf("bystander health changed to %d", tr.Person(2).Health)
		}
		if !tr.Families[0].Storage.IsZero() {
			t.Errorf("storage went negative or non-zero: %+v", tr.Families[0].Storage)
		}
	})
}

func TestAgingTransitions(t *testing.T) {
	tr := buildTribe(t, []member{
		{"kid", tribe.RoleChild, 15, 100},
		{"twin", tribe.RoleChild, 15, 100},
		{"veteran", tribe.RoleHunter, 59, 100},
		{"elder", tribe.RoleElder, 70, 100},
		{"young", tribe.RoleChild, 3, 100},
	})
	tr.Person(1).HuntingSkill = 0.1
	tr.Person(2).GatheringSkill = 0.1
	aging := AgingEffect{}

	tr.CurrentTick = 364
	if aging.ShouldApply(NewTickContext(tr, &scriptedRNG{})) {
		t.Fatal("aging applies off-year")
	}

	tr.CurrentTick = 365
	ctx := NewTickContext(tr, &scriptedRNG{ints: []int{0, 1}})
	if !aging.ShouldApply(ctx) {
		t.Fatal("aging skipped on year boundary")
	}
	aging.Apply(ctx)

	kid, twin := tr.Person(1), tr.Person(2)
	if kid.Role != tribe.RoleHunter || kid.HuntingSkill != 0.5 || kid.Age != 16 {
		t.Errorf("kid = %+v", kid)
	}
	if twin.Role != tribe.RoleGatherer || twin.GatheringSkill != 0.5 {
		t.Errorf("twin = %+v", twin)
	}
	if v := tr.Person(3); v.Role != tribe.RoleElder || v.Age != 60 {
		t.Errorf("veteran = %+v", v)
	}
	if e := tr.Person(4); e.Role != tribe.RoleElder || e.Age != 71 {
		t.Errorf("elder = %+v", e)
	}
	if y := tr.Person(5); y.Role != tribe.RoleChild || y.Age != 4 {
		t.Errorf("young = %+v", y)
	}
}

func TestCleanupAndTally(t *testing.T) {
	tr := buildTribe(t, []member{{"alive", tribe.RoleHunter, 20, 50}, {"dead", tribe.RoleHunter, 20, 0}})
	tr.Families[0].Storage.Set(12, 7)
	tr.AddProgress(12345)
	ctx := NewTickContext(tr, &scriptedRNG{})

	CleanupEffect{}.Apply(ctx)
	LedgerTallyEffect{}.Apply(ctx)

	if len(tr.Members) != 1 || tr.Families[0].Size() != 1 || len(ctx.Deaths()) != 1 {
		t.Fatalf("members=%d family=%d deaths=%d", len(tr.Members), tr.Families[0].Size(), len(ctx.Deaths()))
	}
	if tr.Resources != (tribe.Resources{Food: 12, Water: 7}) {
		t.Errorf("totals = %+v", tr.Resources)
	}
	if got := tr.Ledger.Value("population"); got != 1 {
		t.Errorf("ledger population = %v", got)
	}
	if got := tr.Ledger.Value("morale"); got != 0.5 {
		t.Errorf("ledger morale = %v", got)
	}
	if got := tr.Ledger.Value("stability"); got != 0.5 {
		t.Errorf("ledger stability = %v", got)
	}
	if got := tr.Ledger.Value("progress"); got != 12345 {
		t.Errorf("ledger progress = %v, want 12345", got)
	}
}
