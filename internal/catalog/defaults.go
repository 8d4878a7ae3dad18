package catalog

import "github.com/google/uuid"

// DefaultCount is the size of the built-in catalog.
const DefaultCount = 6

var defaultNamespace = uuid.MustParse("6f1c3e0a-2b7d-4f55-9a43-0d2b8e7c51aa")

// DefaultID derives the stable id of a built-in service from its name.
func DefaultID(name string) string {
	return uuid.NewSHA1(defaultNamespace, []byte(name)).String()
}

// Defaults returns a fresh copy of the built-in catalog. Each entry carries a
// stable id so repeated seeding yields the same identities.
func Defaults() []Service {
	services := []Service{
		{
			Name:        "AC Repair",
			Category:    CategoryACRepair,
			Price:       "Starting from ₹500",
			Description: "Is your AC not cooling properly? Making strange noises? Or completely not working? Our expert technicians can diagnose and fix any AC problem quickly and efficiently.",
			Keywords:    "ac repair fix diagnose troubleshooting cooling problem noise",
			Image:       "https://images.unsplash.com/photo-1621905251918-48416bd8575a?w=800&q=80",
			Features: []string{
				"Comprehensive AC diagnostics",
				"Quick and reliable repairs",
				"All AC brands and models",
				"Same-day service available",
			},
			ProductTypes: []ProductType{
				{Name: "Basic AC Repair", Price: "₹500", Description: "Diagnosis and basic repair"},
				{Name: "Advanced AC Repair", Price: "₹1,200", Description: "Complex repairs with parts replacement"},
				{Name: "Emergency AC Repair", Price: "₹1,500", Description: "Same-day emergency service"},
			},
		},
		{
			Name:        "AC Installation",
			Category:    CategoryACInstallation,
			Price:       "Starting from ₹1,500",
			Description: "Planning to install a new AC? We provide professional installation services for both split and window AC units, ensuring optimal performance and energy efficiency.",
			Keywords:    "ac installation install setup new ac split window unit",
			Image:       "https://images.unsplash.com/photo-1586023492125-27b2c045efd7?w=800&q=80",
			Features: []string{
				"Split AC installation",
				"Window AC installation",
				"Proper sizing and placement",
				"Post-installation support",
			},
			ProductTypes: []ProductType{
				{Name: "Split AC Installation", Price: "₹1,500", Description: "Professional split AC installation"},
				{Name: "Window AC Installation", Price: "₹1,200", Description: "Window AC unit installation"},
				{Name: "Premium Installation", Price: "₹2,500", Description: "Installation with extended warranty"},
			},
		},
		{
			Name:        "AC Gas Refilling",
			Category:    CategoryACGasRefilling,
			Price:       "Starting from ₹800",
			Description: "Low on refrigerant? Our certified technicians provide safe and efficient AC gas refilling services using genuine refrigerant to restore your AC's cooling performance.",
			Keywords:    "ac gas refilling refrigerant gas charge refill leak",
			Image:       "https://images.unsplash.com/photo-1558618666-fcd25c85cd64?w=800&q=80",
			Features: []string{
				"All refrigerant types",
				"Leak detection and repair",
				"Proper gas charging",
				"Performance testing",
			},
			ProductTypes: []ProductType{
				{Name: "Standard Gas Refill", Price: "₹800", Description: "Standard refrigerant refilling"},
				{Name: "Premium Gas Refill", Price: "₹1,200", Description: "Premium refrigerant with leak check"},
				{Name: "Complete Gas Service", Price: "₹1,500", Description: "Gas refill + leak repair + testing"},
			},
		},
		{
			Name:        "AC Maintenance",
			Category:    CategoryACMaintenance,
			Price:       "Starting from ₹600",
			Description: "Regular maintenance keeps your AC running efficiently and extends its lifespan. Our maintenance service includes cleaning, inspection, and tune-ups.",
			Keywords:    "ac maintenance cleaning service tune-up filter replacement",
			Image:       "https://images.unsplash.com/photo-1558618047-3c8c76ca7d13?w=800&q=80",
			Features: []string{
				"Deep cleaning of AC units",
				"Filter replacement",
				"Performance optimization",
				"Preventive maintenance plans",
			},
			ProductTypes: []ProductType{
				{Name: "Basic Maintenance", Price: "₹600", Description: "Cleaning and basic checkup"},
				{Name: "Deep Cleaning Service", Price: "₹1,000", Description: "Deep cleaning with filter replacement"},
				{Name: "Annual Maintenance Plan", Price: "₹3,000", Description: "4 visits per year maintenance plan"},
			},
		},
		{
			Name:        "Split & Window AC Service",
			Category:    CategoryACRepair,
			Price:       "Starting from ₹700",
			Description: "We provide comprehensive service for all types of AC units - split ACs, window ACs, and more. Our technicians are trained to handle any AC model or brand.",
			Keywords:    "split ac window ac service repair all types brands",
			Image:       "https://images.unsplash.com/photo-1631540575402-8c5a0a0b0b0a?w=800&q=80",
			Features: []string{
				"Split AC service and repair",
				"Window AC service and repair",
				"All brands supported",
				"Expert troubleshooting",
			},
			ProductTypes: []ProductType{
				{Name: "Split AC Service", Price: "₹700", Description: "Complete split AC service"},
				{Name: "Window AC Service", Price: "₹650", Description: "Window AC cleaning and service"},
				{Name: "Combo Service", Price: "₹1,200", Description: "Service for both split and window AC"},
			},
		},
		{
			Name:        "Electrical Repair Services",
			Category:    CategoryElectrical,
			Price:       "Starting from ₹400",
			Description: "From minor electrical repairs to major installations, our licensed electricians provide safe and reliable electrical services for your home and business.",
			Keywords:    "electrical repair wiring installation switch socket electrician",
			Image:       "https://images.unsplash.com/photo-1621905252507-b35492cc74b4?w=800&q=80",
			Features: []string{
				"Electrical troubleshooting",
				"Wiring and rewiring",
				"Switch and socket installation",
				"Electrical safety inspections",
			},
			ProductTypes: []ProductType{
				{Name: "Basic Electrical Repair", Price: "₹400", Description: "Minor electrical repairs"},
				{Name: "Wiring Installation", Price: "₹1,500", Description: "Complete wiring installation"},
				{Name: "Electrical Safety Inspection", Price: "₹800", Description: "Complete safety inspection"},
			},
		},
	}

	for i := range services {
		services[i].ID = DefaultID(services[i].Name)
		services[i].Status = StatusAvailable
		services[i].Images = []string{}
	}
	return services
}
